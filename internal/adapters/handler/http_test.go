package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUpscaler struct {
	err error

	called    bool
	seenScale int
}

func (m *mockUpscaler) Upscale(_ context.Context, img image.Image, scale int) (image.Image, error) {
	m.called = true
	m.seenScale = scale

	if m.err != nil {
		return nil, m.err
	}

	bounds := img.Bounds()
	return image.NewNRGBA(image.Rect(0, 0, bounds.Dx()*scale, bounds.Dy()*scale)), nil
}

func (m *mockUpscaler) PrimaryEngine() string {
	return "mock"
}

func newTestServer(upscaler *mockUpscaler) http.Handler {
	return NewServer(upscaler, 10<<20).Router()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, width, height))))

	return buf.Bytes()
}

func multipartBody(t *testing.T, fieldName, fileName, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		`form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &body, writer.FormDataContentType()
}

func TestRoot(t *testing.T) {
	router := newTestServer(&mockUpscaler{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AI Image Upscaler API", body["message"])
	assert.Equal(t, "1.0.0", body["version"])
}

func TestHealth(t *testing.T) {
	router := newTestServer(&mockUpscaler{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mock", body["engine"])
}

func TestUpscaleBinarySuccess(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	body, contentType := multipartBody(t, "file", "cat.png", "image/png", pngBytes(t, 10, 20))
	req := httptest.NewRequest(http.MethodPost, "/upscale/binary?scale=2", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=upscaled_cat.png", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, 2, upscaler.seenScale)

	result, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Bounds().Dx())
	assert.Equal(t, 40, result.Bounds().Dy())
}

func TestUpscaleBinaryDefaultScale(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	body, contentType := multipartBody(t, "file", "cat.png", "image/png", pngBytes(t, 4, 4))
	req := httptest.NewRequest(http.MethodPost, "/upscale/binary", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, upscaler.seenScale)
}

func TestUpscaleBinaryInvalidScale(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	body, contentType := multipartBody(t, "file", "cat.png", "image/png", pngBytes(t, 4, 4))
	req := httptest.NewRequest(http.MethodPost, "/upscale/binary?scale=3", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, upscaler.called)
}

func TestUpscaleBinaryNotAnImageContentType(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	body, contentType := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/upscale/binary", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, upscaler.called)
}

func TestUpscaleBinaryUndecodablePayload(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	body, contentType := multipartBody(t, "file", "cat.png", "image/png", []byte("not a png"))
	req := httptest.NewRequest(http.MethodPost, "/upscale/binary", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, upscaler.called)
}

func TestUpscaleBinaryMissingFileField(t *testing.T) {
	router := newTestServer(&mockUpscaler{})

	body, contentType := multipartBody(t, "picture", "cat.png", "image/png", pngBytes(t, 4, 4))
	req := httptest.NewRequest(http.MethodPost, "/upscale/binary", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpscaleBinaryProcessingFailure(t *testing.T) {
	upscaler := &mockUpscaler{err: errors.New("every engine down")}
	router := newTestServer(upscaler)

	body, contentType := multipartBody(t, "file", "cat.png", "image/png", pngBytes(t, 4, 4))
	req := httptest.NewRequest(http.MethodPost, "/upscale/binary", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "image processing failed", resp["detail"])
}

func TestUpscaleBase64Success(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	scale := 2
	payload, err := json.Marshal(base64Request{
		Image: base64.StdEncoding.EncodeToString(pngBytes(t, 6, 6)),
		Scale: &scale,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/upscale/base64", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp base64Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	decoded, err := base64.StdEncoding.DecodeString(resp.UpscaledImage)
	require.NoError(t, err)

	result, err := png.Decode(bytes.NewReader(decoded))
	require.NoError(t, err)
	assert.Equal(t, 12, result.Bounds().Dx())
	assert.Equal(t, 12, result.Bounds().Dy())
}

func TestUpscaleBase64DefaultScale(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	payload, err := json.Marshal(base64Request{
		Image: base64.StdEncoding.EncodeToString(pngBytes(t, 4, 4)),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/upscale/base64", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, upscaler.seenScale)
}

func TestUpscaleBase64InvalidScale(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	scale := 3
	payload, err := json.Marshal(base64Request{
		Image: base64.StdEncoding.EncodeToString(pngBytes(t, 4, 4)),
		Scale: &scale,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/upscale/base64", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, upscaler.called)
}

func TestUpscaleBase64InvalidBase64(t *testing.T) {
	upscaler := &mockUpscaler{}
	router := newTestServer(upscaler)

	req := httptest.NewRequest(http.MethodPost, "/upscale/base64",
		bytes.NewReader([]byte(`{"image": "not base64!!!", "scale": 4}`)))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, upscaler.called)
}

func TestUpscaleBase64InvalidJSON(t *testing.T) {
	router := newTestServer(&mockUpscaler{})

	req := httptest.NewRequest(http.MethodPost, "/upscale/base64", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlattenRGBDiscardsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})

	flat := flattenRGB(img)

	// fully transparent pixel composites over black
	assert.Equal(t, color.NRGBA{A: 255}, flat.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, flat.NRGBAAt(1, 0))
}
