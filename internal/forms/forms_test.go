package forms

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postForm(values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestPostForm(t *testing.T) {
	f := PostFromRequest(postForm(url.Values{"title": {"  Hello "}, "content": {"World"}}))
	assert.Equal(t, "Hello", f.Title)
	assert.Nil(t, Validate(f))

	errs := Validate(PostForm{Title: strings.Repeat("x", 257)})
	require.NotNil(t, errs)
	assert.Contains(t, errs.Get("title"), "at most 256")
	assert.Equal(t, "This field is required.", errs.Get("content"))
}

func TestPostFormCountsCharacters(t *testing.T) {
	// 256 multi-byte runes are still within the limit.
	assert.Nil(t, Validate(PostForm{Title: strings.Repeat("é", 256), Content: "c"}))
}

func TestCommentForm(t *testing.T) {
	assert.Nil(t, Validate(CommentForm{Body: "nice"}))
	assert.NotEmpty(t, Validate(CommentForm{}).Get("body"))
	assert.NotEmpty(t, Validate(CommentForm{Body: strings.Repeat("b", 1025)}).Get("body"))
}

func TestReportForm(t *testing.T) {
	assert.Nil(t, Validate(ReportForm{Theme: "SP", Description: "spam"}))

	for _, th := range []string{"XX", "sp", ""} {
		errs := Validate(ReportForm{Theme: th, Description: "d"})
		assert.NotEmpty(t, errs.Get("theme"), th)
	}
	errs := Validate(ReportForm{Theme: "XX", Description: "d"})
	assert.Contains(t, errs.Get("theme"), "Select a valid choice")
}

func TestRegisterForm(t *testing.T) {
	ok := RegisterForm{Username: "ann.lee+1", Email: "ann@example.com", Password1: "s3cret-pass", Password2: "s3cret-pass"}
	assert.Nil(t, Validate(ok))

	bad := RegisterForm{Username: "ann lee", Email: "nope", Password1: "12345678", Password2: "87654321"}
	errs := Validate(bad)
	assert.Contains(t, errs.Get("username"), "valid username")
	assert.Equal(t, "Enter a valid email address.", errs.Get("email"))
	assert.Equal(t, "This password is entirely numeric.", errs.Get("password1"))
	assert.Equal(t, "The two password fields didn't match.", errs.Get("password2"))

	short := ok
	short.Password1, short.Password2 = "abc", "abc"
	assert.Contains(t, Validate(short).Get("password1"), "at least 8")
}

func TestChangePasswordForm(t *testing.T) {
	assert.Nil(t, Validate(ChangePasswordForm{OldPassword: "x", NewPassword1: "new-pass1", NewPassword2: "new-pass1"}))
	assert.NotEmpty(t, Validate(ChangePasswordForm{OldPassword: "x", NewPassword1: "new-pass1", NewPassword2: "other"}).Get("new_password2"))
}

func TestUserForm(t *testing.T) {
	f := UserFromRequest(postForm(url.Values{"username": {"ann"}, "first_name": {" Ann "}}))
	assert.Equal(t, "Ann", f.FirstName)
	assert.Nil(t, Validate(f))
	assert.NotEmpty(t, Validate(UserForm{}).Get("username"))
}

func TestMediaFormSet(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("media-0-url", "http://example.com/a.png"))
	require.NoError(t, w.WriteField("media-2-url", "not a url"))
	fw, err := w.CreateFormFile("media-1-file", "b.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, r.ParseMultipartForm(1<<20))

	slots := MediaFromRequest(r)
	require.Len(t, slots, 10)
	assert.Equal(t, "http://example.com/a.png", slots[0].URL)
	require.NotNil(t, slots[1].File)
	assert.Equal(t, "b.png", slots[1].File.Filename)
	assert.True(t, slots[3].Empty())

	errs := ValidateMedia(slots)
	require.NotNil(t, errs)
	assert.Nil(t, errs[0])
	assert.Equal(t, "Enter a valid URL.", errs[2].Get("url"))

	assert.Nil(t, ValidateMedia(slots[:2]))
}

func TestMediaURLSchemes(t *testing.T) {
	for _, ok := range []string{"http://example.com/a.png", "https://example.com/b.jpg"} {
		assert.Nil(t, Validate(MediaForm{URL: ok}), ok)
	}
	for _, bad := range []string{"javascript:alert(1)", "mailto:a@example.com", "ftp://example.com/a.png", "data:image/png;base64,AAAA"} {
		assert.Equal(t, "Enter a valid URL.", Validate(MediaForm{URL: bad}).Get("url"), bad)
	}
}

func TestErrorsAddKeepsFirst(t *testing.T) {
	e := Errors{}
	e.Add("x", "first")
	e.Add("x", "second")
	assert.Equal(t, "first", e.Get("x"))
	assert.True(t, e.Any())
}
