package api

import (
	"net/http"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

// serviceProviderConfig advertises the supported protocol features. Bulk,
// sort, and password change stay off.
func (h *Handler) serviceProviderConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schemas": []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
		"patch":   map[string]interface{}{"supported": true},
		"filter": map[string]interface{}{
			"supported":  true,
			"maxResults": 1000,
		},
		"etag":           map[string]interface{}{"supported": true},
		"bulk":           map[string]interface{}{"supported": false, "maxOperations": 0, "maxPayloadSize": 0},
		"sort":           map[string]interface{}{"supported": false},
		"changePassword": map[string]interface{}{"supported": false},
		"authenticationSchemes": []interface{}{
			map[string]interface{}{
				"type":        "oauthbearertoken",
				"name":        "OAuth Bearer Token",
				"description": "Authentication scheme using the OAuth Bearer Token Standard",
			},
		},
	})
}

func (h *Handler) resourceTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []interface{}{
		map[string]interface{}{
			"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
			"id":       domain.TypeUser,
			"name":     domain.TypeUser,
			"endpoint": "/Users",
			"schema":   domain.SchemaUser,
			"schemaExtensions": []interface{}{
				map[string]interface{}{
					"schema":   domain.SchemaEnterpriseUser,
					"required": false,
				},
			},
		},
		map[string]interface{}{
			"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
			"id":       domain.TypeGroup,
			"name":     domain.TypeGroup,
			"endpoint": "/Groups",
			"schema":   domain.SchemaGroup,
		},
	})
}

func (h *Handler) schemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []interface{}{
		map[string]interface{}{
			"id":   domain.SchemaUser,
			"name": domain.TypeUser,
		},
		map[string]interface{}{
			"id":   domain.SchemaGroup,
			"name": domain.TypeGroup,
		},
		map[string]interface{}{
			"id":   domain.SchemaEnterpriseUser,
			"name": "EnterpriseUser",
		},
	})
}
