package forms

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"blog/internal/models"
)

type PostForm struct {
	Title   string `form:"title" validate:"required,max=256"`
	Content string `form:"content" validate:"required,max=3000"`
}

func PostFromRequest(r *http.Request) PostForm {
	return PostForm{
		Title:   strings.TrimSpace(r.FormValue("title")),
		Content: strings.TrimSpace(r.FormValue("content")),
	}
}

// MediaForm is one slot of the media form set on the create page.
type MediaForm struct {
	URL  string                `form:"url" validate:"omitempty,http_url,max=200"`
	File *multipart.FileHeader `form:"-" validate:"-"`
}

func (m MediaForm) Empty() bool { return m.URL == "" && m.File == nil }

// MediaFromRequest reads every slot media-<i>-url / media-<i>-file of the
// form set, empty ones included, so the page can be redisplayed as submitted.
func MediaFromRequest(r *http.Request) []MediaForm {
	out := make([]MediaForm, models.MaxMediaPerPost)
	for i := range out {
		prefix := "media-" + strconv.Itoa(i) + "-"
		out[i].URL = strings.TrimSpace(r.FormValue(prefix + "url"))
		if r.MultipartForm != nil {
			if fhs := r.MultipartForm.File[prefix+"file"]; len(fhs) > 0 && fhs[0].Size > 0 {
				out[i].File = fhs[0]
			}
		}
	}
	return out
}

// ValidateMedia validates the non-empty slots. The result is indexed like
// slots and is nil when every slot passed.
func ValidateMedia(slots []MediaForm) []Errors {
	var (
		out    = make([]Errors, len(slots))
		failed bool
	)
	for i, m := range slots {
		if m.Empty() {
			continue
		}
		if errs := Validate(m); errs != nil {
			out[i] = errs
			failed = true
		}
	}
	if !failed {
		return nil
	}
	return out
}

type CommentForm struct {
	Body string `form:"body" validate:"required,max=1024"`
}

func CommentFromRequest(r *http.Request) CommentForm {
	return CommentForm{Body: strings.TrimSpace(r.FormValue("body"))}
}

type ReportForm struct {
	Theme       string `form:"theme" validate:"required,theme"`
	Description string `form:"description" validate:"required,max=1024"`
}

func ReportFromRequest(r *http.Request) ReportForm {
	return ReportForm{
		Theme:       strings.TrimSpace(r.FormValue("theme")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
}
