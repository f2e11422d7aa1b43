package handler

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/velocity/internal/port"
)

type GRPCHandler struct {
	owners port.OwnerRepository
}

func NewGRPCHandler(owners port.OwnerRepository) *GRPCHandler {
	return &GRPCHandler{owners: owners}
}

func (h *GRPCHandler) UpsertOwner(ctx context.Context, req *UpsertOwnerRequest) (*OwnerReply, error) {
	if err := validateOwner(req.Owner); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	stored, err := h.owners.UpsertOwner(ctx, req.Owner)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, errorMessage(err))
	}

	return &OwnerReply{Owner: &stored}, nil
}

func (h *GRPCHandler) GetOwner(ctx context.Context, req *GetOwnerRequest) (*OwnerReply, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid owner id")
	}

	owner, ok := h.owners.GetOwnerByID(ctx, id)
	if !ok {
		return &OwnerReply{}, nil
	}

	return &OwnerReply{Owner: &owner}, nil
}

func (h *GRPCHandler) ListOwners(ctx context.Context, req *ListOwnersRequest) (*ListOwnersReply, error) {
	companyID := uuid.Nil
	if req.CompanyID != "" {
		parsed, err := uuid.Parse(req.CompanyID)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid companyId")
		}
		companyID = parsed
	}

	if companyID == uuid.Nil {
		return &ListOwnersReply{Owners: h.owners.GetAllOwners(ctx)}, nil
	}

	return &ListOwnersReply{Owners: h.owners.GetOwnersByCompany(ctx, companyID)}, nil
}
