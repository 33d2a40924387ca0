package simulator

import (
	"fmt"
	"net/http"
)

// AccountKey is the base64 key every simulated storage account hands out.
// It must decode cleanly because shared-key clients use it to sign.
const AccountKey = "c2ltdWxhdG9yLXN0b3JhZ2Uta2V5"

const storageBase = "/subscriptions/{subscriptionId}/resourceGroups/{resourceGroupName}/providers/Microsoft.Storage"

// StorageAccount mirrors the ARM storage account wire shape.
type StorageAccount struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Location   string            `json:"location"`
	Kind       string            `json:"kind"`
	SKU        *StorageSKU       `json:"sku,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Properties struct {
		ProvisioningState string            `json:"provisioningState"`
		PrimaryEndpoints  map[string]string `json:"primaryEndpoints,omitempty"`
	} `json:"properties"`
}

// StorageSKU is the sku block of a storage account.
type StorageSKU struct {
	Name string `json:"name"`
	Tier string `json:"tier,omitempty"`
}

func (s *Server) registerStorage() {
	// PUT - Create storage account. Returns the full account with a
	// terminal provisioning state so SDK pollers finish on the first poll.
	s.mux.HandleFunc("PUT "+storageBase+"/storageAccounts/{accountName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "accountName")

		var req struct {
			Location string            `json:"location"`
			Kind     string            `json:"kind"`
			SKU      *StorageSKU       `json:"sku"`
			Tags     map[string]string `json:"tags"`
		}
		ReadJSON(r, &req)

		acct := StorageAccount{
			ID:       storageAccountID(sub, rg, name),
			Name:     name,
			Type:     "Microsoft.Storage/storageAccounts",
			Location: req.Location,
			Kind:     req.Kind,
			SKU:      req.SKU,
			Tags:     req.Tags,
		}
		acct.Properties.ProvisioningState = "Succeeded"
		acct.Properties.PrimaryEndpoints = map[string]string{
			"blob": fmt.Sprintf("http://%s/%s/", r.Host, name),
		}
		s.accounts.Put(acct.ID, acct)

		WriteJSON(w, http.StatusOK, acct)
	})

	// GET - Get storage account properties
	s.mux.HandleFunc("GET "+storageBase+"/storageAccounts/{accountName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "accountName")

		acct, ok := s.accounts.Get(storageAccountID(sub, rg, name))
		if !ok {
			AzureErrorf(w, "StorageAccountNotFound", http.StatusNotFound,
				"The Resource 'Microsoft.Storage/storageAccounts/%s' under resource group '%s' was not found.", name, rg)
			return
		}
		WriteJSON(w, http.StatusOK, acct)
	})

	// POST - List account keys
	s.mux.HandleFunc("POST "+storageBase+"/storageAccounts/{accountName}/listKeys", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "accountName")

		if _, ok := s.accounts.Get(storageAccountID(sub, rg, name)); !ok {
			AzureErrorf(w, "StorageAccountNotFound", http.StatusNotFound,
				"The Resource 'Microsoft.Storage/storageAccounts/%s' under resource group '%s' was not found.", name, rg)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"keys": []map[string]string{
				{"keyName": "key1", "value": AccountKey, "permissions": "FULL"},
				{"keyName": "key2", "value": AccountKey, "permissions": "FULL"},
			},
		})
	})

	// DELETE - Delete storage account
	s.mux.HandleFunc("DELETE "+storageBase+"/storageAccounts/{accountName}", func(w http.ResponseWriter, r *http.Request) {
		sub := PathParam(r, "subscriptionId")
		rg := PathParam(r, "resourceGroupName")
		name := PathParam(r, "accountName")

		s.accounts.Delete(storageAccountID(sub, rg, name))
		w.WriteHeader(http.StatusOK)
	})
}

func storageAccountID(sub, rg, name string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Storage/storageAccounts/%s", sub, rg, name)
}
