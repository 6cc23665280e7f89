package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cruzzer/bazaar-api/internal/models"
	"github.com/cruzzer/bazaar-api/internal/registry"
	"github.com/cruzzer/bazaar-api/internal/services"
)

// GetAssets handles retrieving the asset list in mint order
func GetAssets(registryService *services.RegistryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := parseAssetParams(r)

		response := registryService.Assets(params)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// GetAsset handles retrieving a single asset
func GetAsset(registryService *services.RegistryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assetID(w, r)
		if !ok {
			return
		}

		asset, err := registryService.Asset(id)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(asset)
	}
}

// MintAsset handles minting a new asset for the authenticated caller
func MintAsset(registryService *services.RegistryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		var req models.MintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		// same client-side rule the minter form enforces
		if req.Name == "" || req.Description == "" || req.TokenURI == "" {
			http.Error(w, "All fields are required", http.StatusBadRequest)
			return
		}

		asset, err := registryService.Mint(caller, req)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(asset)
	}
}

// ListAsset handles putting an asset up for sale
func ListAsset(registryService *services.RegistryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		id, ok := assetID(w, r)
		if !ok {
			return
		}

		var req models.ListRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		asset, err := registryService.List(caller, id, req.Price)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(asset)
	}
}

// DelistAsset handles taking an asset off sale
func DelistAsset(registryService *services.RegistryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		id, ok := assetID(w, r)
		if !ok {
			return
		}

		asset, err := registryService.Delist(caller, id)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(asset)
	}
}

// BuyAsset handles buying a listed asset
func BuyAsset(registryService *services.RegistryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		id, ok := assetID(w, r)
		if !ok {
			return
		}

		var req models.BuyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		asset, err := registryService.Buy(caller, id, req.Payment)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(asset)
	}
}

// GetBalance handles retrieving the credited sale proceeds of an address
func GetBalance(registryService *services.RegistryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := chi.URLParam(r, "address")
		if address == "" {
			http.Error(w, "Address is required", http.StatusBadRequest)
			return
		}

		response := models.BalanceResponse{
			Address: address,
			Amount:  registryService.Balance(address),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// assetID parses the {id} URL parameter, writing a 400 on failure.
func assetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		http.Error(w, "Invalid asset ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeRegistryError maps a typed registry failure to an HTTP status.
func writeRegistryError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, registry.ErrInvalidPrice), errors.Is(err, registry.ErrInvalidTokenURI):
		status = http.StatusBadRequest
	case errors.Is(err, registry.ErrAlreadyListed), errors.Is(err, registry.ErrNotListed):
		status = http.StatusConflict
	case errors.Is(err, registry.ErrWrongPayment):
		status = http.StatusPaymentRequired
	}

	http.Error(w, err.Error(), status)
}

// Helper function to parse asset query parameters
func parseAssetParams(r *http.Request) models.AssetParams {
	params := models.AssetParams{}

	params.Owner = r.URL.Query().Get("owner")

	forSaleStr := r.URL.Query().Get("for_sale")
	if forSaleStr != "" {
		forSale := forSaleStr == "true"
		params.ForSale = &forSale
	}

	return params
}
