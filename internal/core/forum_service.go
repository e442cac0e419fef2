package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"shokucho.jp/portal/internal/apperr"
	"shokucho.jp/portal/internal/store"
	"shokucho.jp/portal/internal/validation"
)

// SimilarLimit caps the "similar articles" list on the detail view.
const SimilarLimit = 6

// ForumRules are the configurable posting limits.
type ForumRules struct {
	MaxTags           int
	MaxTitleLength    int
	MaxBodyLength     int
	MaxCommentLength  int
	ForbiddenTagWords []string
}

// DefaultForumRules returns the limits used when nothing is configured.
func DefaultForumRules() ForumRules {
	return ForumRules{
		MaxTags:           5,
		MaxTitleLength:    100,
		MaxBodyLength:     5000,
		MaxCommentLength:  1000,
		ForbiddenTagWords: []string{"<", ">", "script", "http"},
	}
}

// ArticleDetail is an article with its comments and related articles.
type ArticleDetail struct {
	*store.Article
	Comments []store.Comment `json:"comments"`
	Similar  []store.Article `json:"similar"`
}

type ForumService struct {
	dbStore   *store.SQLiteStore
	validator *validation.Validator
	rules     ForumRules
	logger    zerolog.Logger
}

func NewForumService(db *store.SQLiteStore, v *validation.Validator, rules ForumRules, logger zerolog.Logger) *ForumService {
	forbidden := make([]string, 0, len(rules.ForbiddenTagWords))
	for _, w := range rules.ForbiddenTagWords {
		if w = NormalizeTag(w); w != "" {
			forbidden = append(forbidden, w)
		}
	}
	rules.ForbiddenTagWords = forbidden

	return &ForumService{
		dbStore:   db,
		validator: v,
		rules:     rules,
		logger:    logger,
	}
}

// NormalizeTag folds width (NFKC), lowercases and trims a single tag.
func NormalizeTag(tag string) string {
	return strings.TrimSpace(strings.ToLower(norm.NFKC.String(tag)))
}

// NormalizeTags splits a raw tag field on ",", "，" and "、" and normalizes
// each part. Empty parts are dropped; duplicates are kept.
func NormalizeTags(raw string) []string {
	folded := norm.NFKC.String(raw) // "，" folds to ","
	parts := strings.FieldsFunc(folded, func(r rune) bool {
		return r == ',' || r == '、'
	})

	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := NormalizeTag(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ListArticles returns articles newest first, optionally filtered by tag.
func (s *ForumService) ListArticles(ctx context.Context, tagFilter string) ([]store.Article, error) {
	articles, err := s.dbStore.ListArticles(ctx, NormalizeTag(tagFilter))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list articles")
	}
	return articles, nil
}

// PostArticle validates and stores a new article. Nothing is written when
// validation fails.
func (s *ForumService) PostArticle(ctx context.Context, title, body, rawTags string) (*store.Article, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	tags := NormalizeTags(rawTags)

	err := s.validator.Fields(
		validation.Check{Name: "body", Value: body, Tag: "required,max=" + strconv.Itoa(s.rules.MaxBodyLength)},
		validation.Check{Name: "title", Value: title, Tag: "max=" + strconv.Itoa(s.rules.MaxTitleLength)},
		validation.Check{Name: "tags", Value: len(tags), Tag: "lte=" + strconv.Itoa(s.rules.MaxTags)},
	)
	if err != nil {
		return nil, err
	}
	if err := s.checkForbidden(tags); err != nil {
		return nil, err
	}

	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	article, err := s.dbStore.CreateArticle(ctx, titlePtr, body, tags)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to store article")
	}
	s.logger.Info().Int64("article_id", article.ID).Strs("tags", tags).Msg("article posted")
	return article, nil
}

func (s *ForumService) checkForbidden(tags []string) error {
	for _, t := range tags {
		for _, w := range s.rules.ForbiddenTagWords {
			if strings.Contains(t, w) {
				return apperr.ValidationWithDetails(
					fmt.Sprintf("tag %q contains a forbidden word", t),
					map[string]string{"tags": "must not contain " + w},
				)
			}
		}
	}
	return nil
}

// GetArticle returns an article with its comments (oldest first) and up to
// SimilarLimit articles sharing a tag.
func (s *ForumService) GetArticle(ctx context.Context, id int64) (*ArticleDetail, error) {
	article, err := s.dbStore.GetArticleByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get article")
	}
	if article == nil {
		return nil, apperr.NotFoundf("article %d not found", id)
	}

	comments, err := s.dbStore.GetCommentsByArticleID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get comments")
	}

	similar, err := s.FindSimilar(ctx, article)
	if err != nil {
		return nil, err
	}

	return &ArticleDetail{Article: article, Comments: comments, Similar: similar}, nil
}

// FindSimilar returns up to SimilarLimit other articles sharing at least one
// tag with article, newest first.
func (s *ForumService) FindSimilar(ctx context.Context, article *store.Article) ([]store.Article, error) {
	similar, err := s.dbStore.FindSimilarArticles(ctx, article, SimilarLimit)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to find similar articles")
	}
	return similar, nil
}

// PostComment stores a comment on an existing article.
func (s *ForumService) PostComment(ctx context.Context, articleID int64, body string) (*store.Comment, error) {
	body = strings.TrimSpace(body)

	err := s.validator.Fields(
		validation.Check{Name: "body", Value: body, Tag: "required,max=" + strconv.Itoa(s.rules.MaxCommentLength)},
	)
	if err != nil {
		return nil, err
	}

	article, err := s.dbStore.GetArticleByID(ctx, articleID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to verify article")
	}
	if article == nil {
		return nil, apperr.NotFoundf("article %d not found", articleID)
	}

	comment, err := s.dbStore.CreateComment(ctx, articleID, body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to store comment")
	}
	s.logger.Info().Int64("article_id", articleID).Int64("comment_id", comment.ID).Msg("comment posted")
	return comment, nil
}
