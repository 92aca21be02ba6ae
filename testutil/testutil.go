package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GrainArc/SheetGeo/config"
	"github.com/GrainArc/SheetGeo/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const JWTSecret = "sheetgeo-test-secret"

var dbSeq atomic.Int64

// SetupTestDB opens a private in-memory sqlite database with all tables migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := config.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// CreateProject inserts a project with default calibration.
func CreateProject(t *testing.T, db *gorm.DB, name string) *models.Project {
	t.Helper()
	p := models.NewProject(name)
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func CreateAssetType(t *testing.T, db *gorm.DB, name string) *models.AssetType {
	t.Helper()
	at := models.NewAssetType(name)
	if err := db.Create(at).Error; err != nil {
		t.Fatalf("create asset type: %v", err)
	}
	return at
}

func CreateAsset(t *testing.T, db *gorm.DB, projectID, typeID uint, assetID string, x, y float64) *models.Asset {
	t.Helper()
	a := &models.Asset{ProjectID: projectID, AssetTypeID: typeID, AssetID: assetID, OriginalX: x, OriginalY: y}
	if err := db.Omit("AssetType").Create(a).Error; err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return a
}

// MinimalPDF returns a flat-tree PDF with the given number of letter pages.
func MinimalPDF(pages int) []byte {
	kids := make([]string, pages)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
	}
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages)
	return BuildPDF(objects...)
}

// BuildPDF writes bodies as objects 1..n followed by a cross-reference table
// and a trailer whose /Root is object 1.
func BuildPDF(bodies ...string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(bodies))
	for i, body := range bodies {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(bodies)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(bodies)+1, xref)
	return b.Bytes()
}

// MakeToken signs an HS256 token accepted by the auth gate.
func MakeToken(secret, subject string) string {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return signed
}

// DoRequest sends a JSON request through router.
func DoRequest(router http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// DoMultipart posts form fields and an optional file.
func DoMultipart(router http.Handler, path string, fields map[string]string, fileField, filename string, content []byte, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, _ := mw.CreateFormFile(fileField, filename)
		_, _ = fw.Write(content)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes the JSON envelope written by the response package.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

// Data returns the "data" member of a decoded envelope as an object.
func Data(resp map[string]interface{}) map[string]interface{} {
	d, _ := resp["data"].(map[string]interface{})
	return d
}
