package httpapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doUpload(t *testing.T, router *Router, path, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadImage(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))

	rec := doUpload(t, router, "/properties/1/image", "Piantina Casa.PNG", []byte("png"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	m := decodeMap(t, rec)
	assert.Equal(t, "1/piantina-casa.png", m["path"])
	assert.Equal(t, "/files/piantine/1/piantina-casa.png", m["public_url"])

	// record now carries the link
	rec = doJSON(t, router, http.MethodGet, "/properties/1", nil)
	got := decodeMap(t, rec)
	assert.Equal(t, "1/piantina-casa.png", got["immagine_path"])
	assert.Equal(t, "/files/piantine/1/piantina-casa.png", got["immagine_url"])
}

func TestUploadImageRejectsFormat(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))

	rec := doUpload(t, router, "/properties/1/image", "malware.exe", []byte("x"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeMap(t, rec)["detail"], "unsupported image format")
}

func TestUploadImageRejectsOversize(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))

	big := make([]byte, 6<<20) // limit is 5 MB
	rec := doUpload(t, router, "/properties/1/image", "big.png", big, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeMap(t, rec)["detail"], "size limit")
}

func TestUploadContract(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))

	// contracts must be PDF
	rec := doUpload(t, router, "/properties/1/contract", "contratto.docx", []byte("x"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doUpload(t, router, "/properties/1/contract", "contratto.pdf", []byte("%PDF"), map[string]string{"public": "false"})
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeMap(t, rec)
	assert.Equal(t, "1/contratto.pdf", m["path"])
	_, present := m["public_url"]
	assert.False(t, present)
}

func TestUploadContractRejectsOversize(t *testing.T) {
	router, _, dir := newTestRouterDir(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))

	big := make([]byte, 21<<20) // contract limit is 20 MB
	rec := doUpload(t, router, "/properties/1/contract", "contratto.pdf", big, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeMap(t, rec)["detail"], "contract exceeds size limit")

	// nothing stored, record untouched
	_, err := os.Stat(filepath.Join(dir, "contratti", "1", "contratto.pdf"))
	assert.True(t, os.IsNotExist(err))
	got := decodeMap(t, doJSON(t, router, http.MethodGet, "/properties/1", nil))
	_, present := got["contratto_path"]
	assert.False(t, present)
}

func TestUploadContractLargerThanImageLimit(t *testing.T) {
	router, _, dir := newTestRouterDir(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))

	// bigger than the image cap but within the contract cap; must be stored
	// byte for byte, never cut at the image limit
	content := bytes.Repeat([]byte("p"), 8<<20)
	rec := doUpload(t, router, "/properties/1/contract", "contratto.pdf", content, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := os.ReadFile(filepath.Join(dir, "contratti", "1", "contratto.pdf"))
	require.NoError(t, err)
	assert.Equal(t, len(content), len(stored))
}

func TestUploadUnknownPropertyReturns404(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doUpload(t, router, "/properties/999/image", "a.png", []byte("x"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignedURLEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))

	// no document linked yet
	rec := doJSON(t, router, http.MethodGet, "/properties/1/contract/signed-url", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeMap(t, rec)["detail"], "nessun documento")

	doUpload(t, router, "/properties/1/contract", "contratto.pdf", []byte("%PDF"), nil)

	rec = doJSON(t, router, http.MethodGet, "/properties/1/contract/signed-url?ttl=600", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/files/contratti/1/contratto.pdf", decodeMap(t, rec)["url"])
}

func TestRemoveDocumentEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))
	doUpload(t, router, "/properties/1/image", "foto.png", []byte("x"), nil)

	req := httptest.NewRequest(http.MethodDelete, "/properties/1/image", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// columns are cleared
	got := decodeMap(t, doJSON(t, router, http.MethodGet, "/properties/1", nil))
	_, present := got["immagine_path"]
	assert.False(t, present)
}

func TestUnknownDocumentKind(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/properties", createBody("Bilocale"))

	rec := doJSON(t, router, http.MethodGet, "/properties/1/video/signed-url", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
