package service

import (
	"context"
	"strings"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// TimelineLimit caps the home timeline.
const TimelineLimit = 100

// ErrAccessUnauthorized is returned for every refused message mutation,
// whether the message is missing or belongs to someone else.
var ErrAccessUnauthorized = models.NewUnauthorizedError("Access unauthorized.")

// MessageService implements posting, deleting, liking and listing messages.
type MessageService struct {
	messageRepo repository.MessageRepository
	likeRepo    repository.LikeRepository
}

// NewMessageService returns a new MessageService.
func NewMessageService(messageRepo repository.MessageRepository, likeRepo repository.LikeRepository) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		likeRepo:    likeRepo,
	}
}

// PostMessage stores a new message by authorID. Text is trimmed and must be 1..140 characters.
func (s *MessageService) PostMessage(ctx context.Context, authorID uint, text string) (msg *models.Message, err error) {
	ctx, span := observability.StartSpan(ctx, "MessageService.PostMessage", attribute.Int("user.id", int(authorID)))
	defer func() { observability.EndSpan(span, err) }()

	text = strings.TrimSpace(text)
	if verr := validation.ValidateMessageText(text); verr != nil {
		return nil, models.NewValidationError(verr.Error())
	}

	msg = &models.Message{Text: text, UserID: authorID}
	if err = s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	observability.MessagesPosted.Inc()
	return msg, nil
}

// GetMessage returns the message with its like count and whether viewerID
// (zero for anonymous) has liked it.
func (s *MessageService) GetMessage(ctx context.Context, id, viewerID uint) (*models.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.LikesCount, err = s.likeRepo.Count(ctx, id); err != nil {
		return nil, err
	}
	if viewerID != 0 {
		if msg.Liked, err = s.likeRepo.IsLiked(ctx, viewerID, id); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// DeleteMessage removes the message and its likes when requesterID is the author.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, requesterID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "MessageService.DeleteMessage", attribute.Int("message.id", int(messageID)))
	defer func() { observability.EndSpan(span, err) }()

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return ErrAccessUnauthorized
		}
		return err
	}
	if msg.UserID != requesterID {
		return ErrAccessUnauthorized
	}

	if err = s.messageRepo.Delete(ctx, messageID); err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return ErrAccessUnauthorized
		}
		return err
	}
	observability.MessagesDeleted.Inc()
	return nil
}

// ToggleLike flips userID's like on messageID and reports the new state.
func (s *MessageService) ToggleLike(ctx context.Context, userID, messageID uint) (liked bool, err error) {
	ctx, span := observability.StartSpan(ctx, "MessageService.ToggleLike", attribute.Int("message.id", int(messageID)))
	defer func() { observability.EndSpan(span, err) }()

	if _, err = s.messageRepo.GetByID(ctx, messageID); err != nil {
		return false, err
	}
	liked, err = s.likeRepo.Toggle(ctx, userID, messageID)
	if err != nil {
		return false, err
	}
	if liked {
		observability.LikeToggles.WithLabelValues("like").Inc()
	} else {
		observability.LikeToggles.WithLabelValues("unlike").Inc()
	}
	return liked, nil
}

func (s *MessageService) LikeCount(ctx context.Context, messageID uint) (int64, error) {
	return s.likeRepo.Count(ctx, messageID)
}

// LikedBy returns the messages userID has liked.
func (s *MessageService) LikedBy(ctx context.Context, userID, viewerID uint) ([]models.Message, error) {
	msgs, err := s.likeRepo.LikedMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	return msgs, s.decorate(ctx, msgs, viewerID)
}

func (s *MessageService) LikedIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.likeRepo.LikedIDs(ctx, userID)
}

// MessagesOf returns userID's messages, newest first.
func (s *MessageService) MessagesOf(ctx context.Context, userID, viewerID uint, limit int) ([]models.Message, error) {
	msgs, err := s.messageRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return msgs, s.decorate(ctx, msgs, viewerID)
}

// Timeline returns the newest messages by userID and the users they follow.
func (s *MessageService) Timeline(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > TimelineLimit {
		limit = TimelineLimit
	}
	msgs, err := s.messageRepo.Timeline(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return msgs, s.decorate(ctx, msgs, userID)
}

// decorate fills LikesCount and Liked in place.
func (s *MessageService) decorate(ctx context.Context, msgs []models.Message, viewerID uint) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]uint, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	counts, err := s.likeRepo.CountByMessages(ctx, ids)
	if err != nil {
		return err
	}

	liked := map[uint]bool{}
	if viewerID != 0 {
		likedIDs, err := s.likeRepo.LikedIDs(ctx, viewerID)
		if err != nil {
			return err
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}

	for i := range msgs {
		msgs[i].LikesCount = counts[msgs[i].ID]
		msgs[i].Liked = liked[msgs[i].ID]
	}
	return nil
}
