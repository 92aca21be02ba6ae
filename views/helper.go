package views

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/gin-gonic/gin"
)

// parseID reads a positive integer path parameter.
func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apierr.InvalidInput(name, "must be a positive integer")
	}
	return uint(id), nil
}

// bindMap decodes a JSON object body keeping numbers as json.Number, so
// string and numeric inputs reach the services unchanged.
func bindMap(c *gin.Context) (map[string]interface{}, error) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return map[string]interface{}{}, nil
		}
		return nil, apierr.InvalidInput("body", "must be a JSON object")
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

// readUpload reads one multipart file field, refusing anything over limit bytes.
func readUpload(c *gin.Context, field string, limit int64) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, apierr.InvalidInput(field, "file is required")
	}
	if limit > 0 && fh.Size > limit {
		return "", nil, apierr.InvalidInput(field, "file exceeds %d MB", limit>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, apierr.Internal(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, apierr.Internal(err)
	}
	return fh.Filename, data, nil
}
