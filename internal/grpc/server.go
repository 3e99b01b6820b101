// Package grpc содержит реализацию gRPC-сервера сервиса коротких ссылок
package grpc

import (
	"context"
	"errors"

	"github.com/tempizhere/prowly/internal/grpc/proto"
	"github.com/tempizhere/prowly/internal/models"
	"github.com/tempizhere/prowly/internal/repository"
	"github.com/tempizhere/prowly/internal/service"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server реализует gRPC-сервер сервиса коротких ссылок
type Server struct {
	shortener *service.Shortener
	db        repository.Database
	logger    *zap.Logger
}

// NewServer создаёт новый gRPC-сервер
func NewServer(shortener *service.Shortener, db repository.Database, logger *zap.Logger) *Server {
	return &Server{
		shortener: shortener,
		db:        db,
		logger:    logger,
	}
}

// Shorten обрабатывает создание короткой ссылки
func (s *Server) Shorten(ctx context.Context, req *proto.ShortenRequest) (*proto.ShortenResponse, error) {
	if req.URL == "" {
		return nil, status.Error(codes.InvalidArgument, "url is required")
	}

	owner, ok := ownerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing session")
	}

	link, err := s.shortener.Shorten(models.ShortenRequest{
		URL:         req.URL,
		CustomCode:  req.CustomCode,
		Title:       req.Title,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	}, owner)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeTaken):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		case errors.Is(err, service.ErrInvalidURL),
			errors.Is(err, service.ErrInvalidCustomCode),
			errors.Is(err, service.ErrTitleTooLong),
			errors.Is(err, service.ErrDescriptionLong),
			errors.Is(err, service.ErrInvalidExpiry):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			s.logger.Error("gRPC shorten failed", zap.Error(err))
			return nil, status.Error(codes.Internal, "failed to shorten URL")
		}
	}

	return &proto.ShortenResponse{
		ShortURL:    s.shortener.BuildShortURL(link.Code()),
		ShortCode:   link.Code(),
		OriginalURL: link.OriginalURL,
	}, nil
}

// Resolve обрабатывает разрешение кода в целевой URL.
// Атрибуция перехода не запускается: вызов служебный, а не переход
// пользователя по ссылке.
func (s *Server) Resolve(ctx context.Context, req *proto.ResolveRequest) (*proto.ResolveResponse, error) {
	if req.Code == "" {
		return nil, status.Error(codes.InvalidArgument, "code is required")
	}

	link, err := s.shortener.GetByCode(req.Code)
	if err != nil {
		return &proto.ResolveResponse{Found: false}, nil
	}
	return &proto.ResolveResponse{
		OriginalURL: link.OriginalURL,
		Found:       true,
	}, nil
}

// ClaimSessionLinks обрабатывает перенос сессионных ссылок на пользователя
func (s *Server) ClaimSessionLinks(ctx context.Context, req *proto.ClaimRequest) (*proto.ClaimResponse, error) {
	owner, ok := ownerFromContext(ctx)
	if !ok || owner.Kind != models.OwnerUser {
		return nil, status.Error(codes.Unauthenticated, "user session required")
	}

	resp, err := s.shortener.ClaimSessionLinks(owner.ID, req.SessionID)
	if err != nil {
		s.logger.Error("gRPC claim failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to claim links")
	}

	out := &proto.ClaimResponse{
		Claimed: resp.Claimed,
		Links:   make([]proto.ClaimedLink, 0, len(resp.Links)),
	}
	for _, l := range resp.Links {
		out.Links = append(out.Links, proto.ClaimedLink{
			ShortCode:   l.ShortCode,
			OriginalURL: l.OriginalURL,
		})
	}
	return out, nil
}

// GetStats обрабатывает запрос сводной статистики сервиса
func (s *Server) GetStats(ctx context.Context, req *proto.GetStatsRequest) (*proto.GetStatsResponse, error) {
	stats, err := s.shortener.Stats()
	if err != nil {
		s.logger.Error("gRPC stats failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to get stats")
	}
	return &proto.GetStatsResponse{
		Links:  stats.Links,
		Clicks: stats.Clicks,
	}, nil
}

// Ping обрабатывает проверку состояния сервиса
func (s *Server) Ping(ctx context.Context, req *proto.PingRequest) (*proto.PingResponse, error) {
	available := s.db != nil && s.db.Ping() == nil
	return &proto.PingResponse{DatabaseAvailable: available}, nil
}
