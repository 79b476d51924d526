package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsStockConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "stock version conflict",
			err:  ErrStockVersionConflict,
			want: true,
		},
		{
			name: "wrapped stock version conflict",
			err:  fmt.Errorf("commit allocation: %w", ErrStockVersionConflict),
			want: true,
		},
		{
			name: "other error",
			err:  ErrInsufficientStock,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsStockConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsStockConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "order not found",
			err:  ErrOrderNotFound,
			want: CodeOrderNotFound,
		},
		{
			name: "order lines missing",
			err:  ErrOrderLineNotFound,
			want: CodeOrderItemNotFound,
		},
		{
			name: "insufficient stock",
			err:  ErrInsufficientStock,
			want: CodeInsufficientStock,
		},
		{
			name: "all partners insufficient",
			err:  ErrAllPartnersInsufficientStock,
			want: CodeAllPartnersInsufficientStock,
		},
		{
			name: "no active partners",
			err:  ErrNoActivePartners,
			want: CodeNoActivePartners,
		},
		{
			name: "lock failure distinct from insufficiency",
			err:  ErrOptimisticLockFailed,
			want: CodeOptimisticLockFailed,
		},
		{
			name: "wrapped lock failure",
			err:  fmt.Errorf("allocate order: %w", ErrOptimisticLockFailed),
			want: CodeOptimisticLockFailed,
		},
		{
			name: "adjustment failure",
			err:  ErrInventoryUpdateFailed,
			want: CodeInventoryUpdateFailed,
		},
		{
			name: "invalid quantity",
			err:  ErrInvalidQuantity,
			want: CodeInvalidQuantity,
		},
		{
			name: "already allocated",
			err:  ErrOrderAlreadyAllocated,
			want: CodeOrderAlreadyAllocated,
		},
		{
			name: "unknown error",
			err:  errors.New("boom"),
			want: CodeInternal,
		},
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Code(tt.err)
			if got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsBusinessFailure(t *testing.T) {
	business := []error{
		ErrInsufficientStock,
		ErrAllPartnersInsufficientStock,
		ErrNoActivePartners,
		ErrOrderNotFound,
		ErrOrderLineNotFound,
		ErrMixedProductOrder,
		ErrOrderAlreadyAllocated,
		ErrInvalidQuantity,
	}
	for _, err := range business {
		if !IsBusinessFailure(err) {
			t.Errorf("IsBusinessFailure(%v) = false, want true", err)
		}
	}

	infra := []error{
		ErrOptimisticLockFailed,
		ErrStockVersionConflict,
		ErrInventoryUpdateFailed,
		errors.New("connection refused"),
		nil,
	}
	for _, err := range infra {
		if IsBusinessFailure(err) {
			t.Errorf("IsBusinessFailure(%v) = true, want false", err)
		}
	}
}
