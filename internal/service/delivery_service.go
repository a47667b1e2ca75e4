package service

import (
	"context"

	"github.com/stemsi/medsurvey/internal/model"
	"github.com/stemsi/medsurvey/internal/repository"
)

// DeliverySummary counts submission attempts of one variant by outcome.
type DeliverySummary struct {
	Variant   string `json:"variant"`
	Delivered int    `json:"delivered"`
	Rejected  int    `json:"rejected"`
	Failed    int    `json:"failed"`
}

type DeliveryService interface {
	Summary(ctx context.Context, variant string) (*DeliverySummary, error)
}

type deliveryService struct {
	repo repository.DeliveryRepository
}

func NewDeliveryService(repo repository.DeliveryRepository) DeliveryService {
	return &deliveryService{repo: repo}
}

func (s *deliveryService) Summary(ctx context.Context, variant string) (*DeliverySummary, error) {
	counts, err := s.repo.CountByOutcome(ctx, variant)
	if err != nil {
		return nil, err
	}
	return &DeliverySummary{
		Variant:   variant,
		Delivered: counts[model.DeliveryDelivered],
		Rejected:  counts[model.DeliveryRejected],
		Failed:    counts[model.DeliveryFailed],
	}, nil
}
