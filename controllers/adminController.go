package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"shop/models"
	"shop/utils"
)

type itemRequest struct {
	Name        string           `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Description string           `json:"description"`
}

func (req itemRequest) validate() (models.Item, string) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Item{}, "Name is required"
	}
	if req.Price == nil || req.Price.IsNegative() {
		return models.Item{}, "Price must be a non-negative number"
	}
	return models.Item{
		Name:        name,
		Price:       req.Price.Round(2),
		Description: strings.TrimSpace(req.Description),
	}, ""
}

func (a *API) AdminListItems(w http.ResponseWriter, r *http.Request) {
	a.ListItems(w, r)
}

func (a *API) AdminCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.HandleError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	item, msg := req.validate()
	if msg != "" {
		utils.HandleError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := a.store.CreateItem(r.Context(), item)
	if err != nil {
		storeError(w, err, "Failed to create item")
		return
	}
	utils.SendJSONResponse(w, http.StatusCreated, item)
}

func (a *API) AdminUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.HandleError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.HandleError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	item, msg := req.validate()
	if msg != "" {
		utils.HandleError(w, http.StatusBadRequest, msg)
		return
	}
	item.ID = id

	if err := a.store.UpdateItem(r.Context(), item); err != nil {
		storeError(w, err, "Failed to update item")
		return
	}
	utils.SendJSONResponse(w, http.StatusOK, item)
}

func (a *API) AdminDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		utils.HandleError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	if err := a.store.DeleteItem(r.Context(), id); err != nil {
		storeError(w, err, "Failed to delete item")
		return
	}
	utils.HandleError(w, http.StatusOK, "Item deleted")
}
