package repo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertFileIDToURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getFile", r.URL.Path)
		if r.URL.Query().Get("file_id") == "missing" {
			w.Write([]byte(`{"ok":false}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"file_id":"abc","file_path":"photos/file_1.jpg"}}`))
	}))
	defer srv.Close()

	s := NewImageService("TOKEN")
	s.BaseURL = srv.URL + "/bot"
	s.FileBaseURL = "https://files.example/bot"

	url, err := s.ConvertFileIDToURL(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/botTOKEN/photos/file_1.jpg", url)

	_, err = s.ConvertFileIDToURL(context.Background(), "missing")
	assert.Error(t, err)
}

func TestCardImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/Data_Scientist") {
			w.Write([]byte(`{"thumbnail":{"source":"https://img.example/ds.png"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewImageService("")
	s.SummaryBaseURL = srv.URL + "/summary/"

	url, err := s.CardImage(context.Background(), "Data Scientist")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/ds.png", url)

	_, err = s.CardImage(context.Background(), "Nothing Here")
	assert.Error(t, err)
}
