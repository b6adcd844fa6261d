package models

import "time"

type User struct {
	ID         int64
	Username   string
	Email      string
	FirstName  string
	LastName   string
	DateJoined time.Time
}

// Owned is anything with an owning user; ownership gates mutation.
type Owned interface {
	OwnerID() int64
}

type Post struct {
	ID        int64
	Title     string
	Content   string
	CreatedAt time.Time
	AuthorID  int64
	Author    string

	Likes    int
	Dislikes int
	Comments int

	// FirstMedia is the oldest attachment, set on list rows only.
	FirstMedia *Media
	Media      []Media
}

func (p *Post) OwnerID() int64 { return p.AuthorID }

type Comment struct {
	ID        int64
	PostID    int64
	UserID    int64
	Author    string
	Body      string
	CreatedAt time.Time
}

// Reaction is a user's current stance on a post. Like and dislike exclude each other.
type Reaction int

const (
	ReactionNone Reaction = iota
	ReactionLike
	ReactionDislike
)

func (r Reaction) String() string {
	switch r {
	case ReactionLike:
		return "like"
	case ReactionDislike:
		return "dislike"
	default:
		return "none"
	}
}

type Media struct {
	ID        int64
	PostID    int64
	CreatedAt time.Time
	URL       string
	// File is the storage key of an uploaded image, empty for link-only media.
	File string
}

// Src is what templates put in an <img src>.
func (m Media) Src() string {
	if m.File != "" {
		return "/media/" + m.File
	}
	return m.URL
}

const MaxMediaPerPost = 10
