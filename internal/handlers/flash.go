package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
)

const flashSessionName = "portal_flash"

// Message is one transient notification shown on the next rendered page.
type Message struct {
	Kind string // "success" or "error"
	Text string
}

// Flash stores transient notifications in a signed cookie so they
// survive the redirect after a POST.
type Flash struct {
	store *sessions.CookieStore
}

func NewFlash(secret []byte) *Flash {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Flash{store: store}
}

// Add queues a notification for the next page render.
func (f *Flash) Add(w http.ResponseWriter, r *http.Request, kind, text string) {
	sess, _ := f.store.Get(r, flashSessionName)
	sess.AddFlash(kind + "|" + text)
	if err := sess.Save(r, w); err != nil {
		log.Printf("flash: save: %v", err)
	}
}

// Pop returns and clears the queued notifications.
func (f *Flash) Pop(w http.ResponseWriter, r *http.Request) []Message {
	sess, _ := f.store.Get(r, flashSessionName)
	raw := sess.Flashes()
	if len(raw) > 0 {
		if err := sess.Save(r, w); err != nil {
			log.Printf("flash: save: %v", err)
		}
	}
	msgs := make([]Message, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		kind, text, found := strings.Cut(s, "|")
		if !found {
			kind, text = "success", s
		}
		msgs = append(msgs, Message{Kind: kind, Text: text})
	}
	return msgs
}
