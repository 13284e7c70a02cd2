package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/starford/contacts/internal/models"
)

const maxBodyBytes = 1 << 20

var errBadFavorite = errors.New(`favorite must be "true" or "false"`)

// patchFields maps form field names to the patch field they fill.
var patchFields = map[string]func(*models.ContactPatch, string){
	"first":   func(p *models.ContactPatch, v string) { p.First = models.String(v) },
	"last":    func(p *models.ContactPatch, v string) { p.Last = models.String(v) },
	"avatar":  func(p *models.ContactPatch, v string) { p.Avatar = models.String(v) },
	"twitter": func(p *models.ContactPatch, v string) { p.Twitter = models.String(v) },
	"notes":   func(p *models.ContactPatch, v string) { p.Notes = models.String(v) },
}

// isForm reports whether the request body is form encoded.
func isForm(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

// decodePatch reads a ContactPatch from a JSON or form body. Only fields
// present in the request end up set. An empty body is an empty patch.
func decodePatch(w http.ResponseWriter, r *http.Request) (models.ContactPatch, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var p models.ContactPatch

	if isForm(r) {
		if err := parseForm(r); err != nil {
			return p, fmt.Errorf("invalid form body: %w", err)
		}
		for name, set := range patchFields {
			if vals, ok := r.PostForm[name]; ok && len(vals) > 0 {
				set(&p, vals[0])
			}
		}
		if vals, ok := r.PostForm["favorite"]; ok && len(vals) > 0 {
			fav, err := parseFavorite(vals[0])
			if err != nil {
				return p, err
			}
			p.Favorite = &fav
		}
		return p, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return models.ContactPatch{}, nil
		}
		return p, fmt.Errorf("invalid JSON body: %w", err)
	}
	return p, nil
}

// decodeFavorite reads the favorite flag from a form field or JSON body.
func decodeFavorite(w http.ResponseWriter, r *http.Request) (bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if isForm(r) {
		if err := parseForm(r); err != nil {
			return false, fmt.Errorf("invalid form body: %w", err)
		}
		if _, ok := r.PostForm["favorite"]; !ok {
			return false, errBadFavorite
		}
		return parseFavorite(r.PostForm.Get("favorite"))
	}

	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return false, errBadFavorite
		}
		return false, fmt.Errorf("invalid JSON body: %w", err)
	}
	if req.Favorite == nil {
		return false, errBadFavorite
	}
	return bool(*req.Favorite), nil
}

func parseForm(r *http.Request) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		return r.ParseMultipartForm(maxBodyBytes)
	}
	return r.ParseForm()
}

// parseFavorite accepts exactly the strings the favorite button submits.
func parseFavorite(v string) (bool, error) {
	switch v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errBadFavorite
	}
}
