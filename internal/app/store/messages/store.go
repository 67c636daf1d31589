// internal/app/store/messages/store.go
package messagestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/system/htmlsanitize"
	"github.com/dkpmalut/lautdata/internal/app/system/paging"
	"github.com/dkpmalut/lautdata/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Field limits applied after sanitizing.
const (
	MaxNameLen    = 120
	MaxEmailLen   = 254
	MaxSubjectLen = 200
	MaxBodyLen    = 5000
)

var (
	ErrNameRequired = errors.New("name is required")
	ErrEmailInvalid = errors.New("a valid email is required")
	ErrBodyRequired = errors.New("message is required")
	ErrFieldTooLong = errors.New("field is too long")
	ErrNotFound     = errors.New("message not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("messages")}
}

// Input is a raw contact-form submission.
type Input struct {
	Name    string
	Email   string
	Subject string
	Body    string
}

// Clean strips markup from every field and validates the result.
func (in Input) Clean() (models.Message, error) {
	m := models.Message{
		Name:    htmlsanitize.PlainText(in.Name),
		Email:   strings.ToLower(htmlsanitize.PlainText(in.Email)),
		Subject: htmlsanitize.PlainText(in.Subject),
		Body:    htmlsanitize.PlainText(in.Body),
	}
	switch {
	case m.Name == "":
		return m, ErrNameRequired
	case !looksLikeEmail(m.Email):
		return m, ErrEmailInvalid
	case m.Body == "":
		return m, ErrBodyRequired
	case len(m.Name) > MaxNameLen, len(m.Email) > MaxEmailLen,
		len(m.Subject) > MaxSubjectLen, len(m.Body) > MaxBodyLen:
		return m, ErrFieldTooLong
	}
	return m, nil
}

func looksLikeEmail(s string) bool {
	at := strings.LastIndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n") &&
		strings.Contains(s[at+1:], ".")
}

// Create validates in and stores it as an unread message.
func (s *Store) Create(ctx context.Context, in Input) (models.Message, error) {
	m, err := in.Clean()
	if err != nil {
		return models.Message{}, err
	}
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// Page is one newest-first slice of the inbox.
type Page struct {
	Messages []models.Message
	paging.Result
	Prev string
	Next string
}

// List returns one page of messages. unreadOnly hides read messages.
func (s *Store) List(ctx context.Context, before, after string, unreadOnly bool) (Page, error) {
	ks := paging.NewestFirst(before, after)
	filter := ks.Filter()
	if unreadOnly {
		filter["read"] = false
	}

	cur, err := s.c.Find(ctx, filter, ks.FindOptions())
	if err != nil {
		return Page{}, err
	}
	var msgs []models.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return Page{}, err
	}

	res := paging.TrimPage(&msgs, before, after)
	if ks.Backward {
		paging.Reverse(msgs)
	}
	prev, next := paging.Cursors(msgs, func(m models.Message) primitive.ObjectID { return m.ID })
	return Page{Messages: msgs, Result: res, Prev: prev, Next: next}, nil
}

// MarkRead flags a message as read.
func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a message.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnread returns the number of unread messages.
func (s *Store) CountUnread(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"read": false})
}
