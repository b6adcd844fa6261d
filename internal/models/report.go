package models

import "time"

type ReportTheme string

const (
	ThemeNotInteresting ReportTheme = "NI"
	ThemeCensorship     ReportTheme = "CE"
	ThemeSpam           ReportTheme = "SP"
	ThemeOther          ReportTheme = "OT"
)

// ReportThemes lists the themes in the order the form offers them.
var ReportThemes = []ReportTheme{ThemeNotInteresting, ThemeCensorship, ThemeSpam, ThemeOther}

func (t ReportTheme) Label() string {
	switch t {
	case ThemeNotInteresting:
		return "Not interesting"
	case ThemeCensorship:
		return "Censorship"
	case ThemeSpam:
		return "Spam"
	case ThemeOther:
		return "Other"
	}
	return string(t)
}

func (t ReportTheme) Valid() bool {
	for _, v := range ReportThemes {
		if v == t {
			return true
		}
	}
	return false
}

type Report struct {
	ID          int64
	Theme       ReportTheme
	PostID      int64
	PostTitle   string
	UserID      int64
	Description string
	CreatedAt   time.Time
	IsSolved    bool
}

func (r *Report) OwnerID() int64 { return r.UserID }
