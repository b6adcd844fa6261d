package httpx

import (
	"strconv"

	"blog/internal/models"
)

// resolvePage turns the ?page= value into a page number. "last" picks the
// final page. Anything else that is not an existing page fails, except that
// page 1 always exists so an empty listing still renders.
func resolvePage(raw string, total, size int) (int, bool) {
	pages := (&models.PostPage{Total: total, Size: size}).NumPages()
	switch raw {
	case "":
		return 1, true
	case "last":
		return pages, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > pages {
		return 0, false
	}
	return n, true
}
