package usecase

import (
	"context"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type AddressUsecase struct {
	addressRepo repo.AddressRepository
}

func NewAddressUsecase(addressRepo repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addressRepo: addressRepo}
}

type CreateAddressInput struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, in CreateAddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.Name == "" || in.Line1 == "" || in.City == "" || in.PostalCode == "" {
		return model.Address{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "name, line1, city and postal_code are required")
	}
	if in.Country == "" {
		in.Country = "US"
	}
	if len(in.Country) != 2 {
		return model.Address{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "country must be a 2-letter code")
	}

	a, err := u.addressRepo.Create(ctx, model.Address{
		UserID:     userID,
		Name:       in.Name,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		IsDefault:  in.IsDefault,
	})
	if err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return a, nil
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	list, err := u.addressRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return list, nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	owned, err := u.addressRepo.IsOwnedByUser(ctx, addressID, userID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !owned {
		//他人の住所は存在ごと隠す
		return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}

	if err := u.addressRepo.Delete(ctx, addressID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return nil
}
