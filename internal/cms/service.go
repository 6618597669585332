package cms

import (
	"context"
	"fmt"

	"github.com/lowc1012/bookeasy/internal/log"
	"go.uber.org/zap"
)

// OperationRecorder is notified after every store operation.
type OperationRecorder interface {
	RecordCMSOperation(operation string, err error)
}

type Service struct {
	store    Store
	recorder OperationRecorder
}

func NewService(store Store, recorder OperationRecorder) *Service {
	if store == nil {
		store = DefaultStore{}
	}
	return &Service{store: store, recorder: recorder}
}

// Content never fails: when the store cannot be read the defaults are served.
func (s *Service) Content(ctx context.Context) *Content {
	content, err := s.store.Load(ctx)
	s.record("load", err)
	if err != nil {
		log.Logger().Error("Failed to load content, serving defaults",
			zap.String("backend", s.store.Backend()), zap.Error(err))
		return DefaultContent()
	}
	return content
}

func (s *Service) Save(ctx context.Context, content *Content) error {
	if err := content.Validate(); err != nil {
		return &InvalidContentError{Err: err}
	}
	err := s.store.Save(ctx, content)
	s.record("save", err)
	if err != nil {
		log.Logger().Error("Failed to save content", zap.String("backend", s.store.Backend()), zap.Error(err))
		return err
	}
	log.Logger().Info("Content saved", zap.String("backend", s.store.Backend()))
	return nil
}

func (s *Service) Reset(ctx context.Context) error {
	err := s.store.Reset(ctx)
	s.record("reset", err)
	if err != nil {
		log.Logger().Error("Failed to reset content", zap.String("backend", s.store.Backend()), zap.Error(err))
		return err
	}
	log.Logger().Info("Content reset to defaults", zap.String("backend", s.store.Backend()))
	return nil
}

type Status struct {
	Configured bool
	Backend    string
}

func (s *Service) Status() Status {
	backend := s.store.Backend()
	return Status{Configured: backend != "none", Backend: backend}
}

func (s *Service) record(operation string, err error) {
	if s.recorder != nil {
		s.recorder.RecordCMSOperation(operation, err)
	}
}

// InvalidContentError wraps a content validation failure.
type InvalidContentError struct {
	Err error
}

func (e *InvalidContentError) Error() string {
	return fmt.Sprintf("invalid content: %v", e.Err)
}

func (e *InvalidContentError) Unwrap() error {
	return e.Err
}
