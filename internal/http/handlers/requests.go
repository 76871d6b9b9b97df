package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"brandkit/internal/domain"
)

// decodeGenerationInput reads a generation request from a JSON body or from a
// multipart form whose optional "image" part carries the source image.
func (a *App) decodeGenerationInput(w http.ResponseWriter, r *http.Request) (domain.GenerationInput, error) {
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return parseMultipartInput(r, limit)
	}
	var in domain.GenerationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, err
		}
		return in, fmt.Errorf("%w: invalid payload", domain.ErrInvalidRequest)
	}
	return in, nil
}

func parseMultipartInput(r *http.Request, limit int64) (domain.GenerationInput, error) {
	var in domain.GenerationInput
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, err
		}
		return in, fmt.Errorf("%w: invalid multipart form", domain.ErrInvalidRequest)
	}
	in.Mode = r.FormValue("mode")
	in.ModelID = r.FormValue("model")
	in.Prompt = r.FormValue("prompt")
	in.Resolution = r.FormValue("resolution")
	in.SourceImageRef = r.FormValue("source_image")
	for _, v := range r.MultipartForm.Value["styles"] {
		in.StyleTags = append(in.StyleTags, strings.Split(v, ",")...)
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return in, fmt.Errorf("%w: invalid image part", domain.ErrInvalidRequest)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return in, fmt.Errorf("read image: %w", err)
	}
	in.SourceImage = &domain.ImageUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return in, nil
}
