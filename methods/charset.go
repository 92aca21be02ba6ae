package methods

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// knownCharsets maps chardet's names onto decoders.
var knownCharsets = map[string]encoding.Encoding{
	"gb-18030":     simplifiedchinese.GB18030,
	"gb18030":      simplifiedchinese.GB18030,
	"gbk":          simplifiedchinese.GBK,
	"big5":         traditionalchinese.Big5,
	"shift_jis":    japanese.ShiftJIS,
	"euc-jp":       japanese.EUCJP,
	"windows-1252": charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// DecodeText returns data as UTF-8 along with the charset it was read as.
// A UTF-8 BOM is dropped. Anything that is not valid UTF-8 goes through
// charset detection and falls back to Windows-1252.
func DecodeText(data []byte) ([]byte, string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return data[len(utf8BOM):], "UTF-8", nil
	}
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		return out, "UTF-16", err
	}
	if utf8.Valid(data) {
		return data, "UTF-8", nil
	}

	charset := DetectEncoding(data)
	enc := lookupEncoding(charset)
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, charset, err
	}
	return out, charset, nil
}

// DetectEncoding reports chardet's best guess, or "" when it has none.
func DetectEncoding(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return ""
	}
	return result.Charset
}

func lookupEncoding(charset string) encoding.Encoding {
	name := strings.ToLower(strings.TrimSpace(charset))
	if enc, ok := knownCharsets[name]; ok {
		return enc
	}
	if enc, err := htmlindex.Get(name); err == nil && enc != nil {
		return enc
	}
	return charmap.Windows1252
}
