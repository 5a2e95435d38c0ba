package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

type EndpointRepository interface {
	Create(ctx context.Context, endpoint *models.Endpoint) error
	// Get returns the endpoint only if it belongs to scope.
	Get(ctx context.Context, scope models.Scope, endpointID uuid.UUID) (*models.Endpoint, error)
	List(ctx context.Context, orgID string, types []models.EndpointType, page models.Page) ([]models.Endpoint, error)
	SetEnabled(ctx context.Context, orgID string, endpointID uuid.UUID, enabled bool) (bool, error)
	Delete(ctx context.Context, orgID string, endpointID uuid.UUID) (bool, error)
}

type endpointRepository struct {
	db *sql.DB
}

func NewEndpointRepository(db *sql.DB) EndpointRepository {
	return &endpointRepository{db: db}
}

// endpointColumns and endpointJoins load an endpoint and whichever properties
// row matches its type in one query. scanEndpoint reads them back.
const endpointColumns = `
	e.id, e.org_id, e.account_id, e.name, e.description, e.endpoint_type, e.endpoint_sub_type,
	e.enabled, e.status, e.server_errors, e.created, e.updated,
	w.url, w.method, w.disable_ssl_verification, w.secret_token,
	c.url, c.disable_ssl_verification, c.secret_token, c.basic_authentication, c.extras,
	s.only_admins, s.group_id`

const endpointJoins = `
	LEFT JOIN notifications.endpoint_webhooks w ON w.endpoint_id = e.id
	LEFT JOIN notifications.camel_properties c ON c.endpoint_id = e.id
	LEFT JOIN notifications.system_subscription_properties s ON s.endpoint_id = e.id`

func (r *endpointRepository) Create(ctx context.Context, endpoint *models.Endpoint) error {
	if err := endpoint.Validate(); err != nil {
		return apperror.Invalid("%s", err.Error())
	}
	if endpoint.ID == uuid.Nil {
		endpoint.ID = uuid.New()
	}
	if endpoint.Created.IsZero() {
		endpoint.Created = time.Now().UTC()
	}
	endpoint.Normalize()

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		const query = `
			INSERT INTO notifications.endpoints
				(id, org_id, account_id, name, description, endpoint_type, endpoint_sub_type, enabled, status, server_errors, created)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.ExecContext(ctx, query,
			endpoint.ID,
			endpoint.OrgID,
			endpoint.AccountID,
			endpoint.Name,
			endpoint.Description,
			endpoint.Type,
			endpoint.SubType,
			endpoint.Enabled,
			endpoint.Status,
			endpoint.ServerErrors,
			endpoint.Created,
		)
		if err != nil {
			return classify(err, "insert endpoint")
		}
		return insertProperties(ctx, tx, endpoint.ID, endpoint.Properties)
	})
}

func insertProperties(ctx context.Context, tx *sql.Tx, endpointID uuid.UUID, props models.EndpointProperties) error {
	switch p := props.(type) {
	case models.WebhookProperties:
		const query = `
			INSERT INTO notifications.endpoint_webhooks (endpoint_id, url, method, disable_ssl_verification, secret_token)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err := tx.ExecContext(ctx, query, endpointID, p.URL, p.NormalizedMethod(), p.DisableSSLVerification, p.SecretToken)
		return classify(err, "insert webhook properties")

	case models.CamelProperties:
		const query = `
			INSERT INTO notifications.camel_properties (endpoint_id, url, disable_ssl_verification, secret_token, basic_authentication, extras)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		var auth, extras interface{}
		if p.BasicAuthentication != nil {
			raw, err := json.Marshal(p.BasicAuthentication)
			if err != nil {
				return errors.Wrap(err, "marshal basic authentication")
			}
			auth = raw
		}
		if len(p.Extras) > 0 {
			raw, err := json.Marshal(p.Extras)
			if err != nil {
				return errors.Wrap(err, "marshal extras")
			}
			extras = raw
		}
		_, err := tx.ExecContext(ctx, query, endpointID, p.URL, p.DisableSSLVerification, p.SecretToken, auth, extras)
		return classify(err, "insert camel properties")

	case models.SystemSubscriptionProperties:
		const query = `
			INSERT INTO notifications.system_subscription_properties (endpoint_id, only_admins, group_id)
			VALUES ($1, $2, $3)
		`
		var groupID interface{}
		if p.GroupID != nil {
			groupID = *p.GroupID
		}
		_, err := tx.ExecContext(ctx, query, endpointID, p.OnlyAdmins, groupID)
		return classify(err, "insert subscription properties")
	}
	return nil
}

func (r *endpointRepository) Get(ctx context.Context, scope models.Scope, endpointID uuid.UUID) (*models.Endpoint, error) {
	query := `SELECT` + endpointColumns + `
		FROM notifications.endpoints e` + endpointJoins + `
		WHERE e.id = $1 AND e.org_id IS NOT DISTINCT FROM $2`

	ep, err := scanEndpoint(r.db.QueryRowContext(ctx, query, endpointID, orgArg(scope)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("endpoint %s not found", endpointID)
		}
		return nil, classify(err, "get endpoint")
	}
	return &ep, nil
}

func (r *endpointRepository) List(ctx context.Context, orgID string, types []models.EndpointType, page models.Page) ([]models.Endpoint, error) {
	page = page.Clamp(models.DefaultPageLimit, models.MaxPageLimit)
	query := `SELECT` + endpointColumns + `
		FROM notifications.endpoints e` + endpointJoins + `
		WHERE e.org_id = $1
		  AND (cardinality($2::text[]) = 0 OR e.endpoint_type = ANY($2::text[]))
		ORDER BY e.created, e.id
		LIMIT $3 OFFSET $4`

	wanted := make([]string, 0, len(types))
	for _, t := range types {
		wanted = append(wanted, string(t))
	}

	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(orgID), pq.Array(wanted), page.Limit, page.Offset)
	if err != nil {
		return nil, classify(err, "list endpoints")
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, classify(err, "scan endpoint")
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list endpoints")
	}
	return endpoints, nil
}

func (r *endpointRepository) SetEnabled(ctx context.Context, orgID string, endpointID uuid.UUID, enabled bool) (bool, error) {
	const query = `
		UPDATE notifications.endpoints
		SET enabled = $1, updated = NOW()
		WHERE id = $2 AND org_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, enabled, endpointID, strings.TrimSpace(orgID))
	if err != nil {
		return false, classify(err, "update endpoint")
	}
	n, err := affected(res, "update endpoint")
	return n > 0, err
}

// Delete removes an org endpoint. Its behavior group actions go with it
// through the foreign key cascade.
func (r *endpointRepository) Delete(ctx context.Context, orgID string, endpointID uuid.UUID) (bool, error) {
	const query = `DELETE FROM notifications.endpoints WHERE id = $1 AND org_id = $2`
	res, err := r.db.ExecContext(ctx, query, endpointID, strings.TrimSpace(orgID))
	if err != nil {
		return false, classify(err, "delete endpoint")
	}
	n, err := affected(res, "delete endpoint")
	return n > 0, err
}

// scanEndpoint reads endpointColumns. lead receives any columns selected
// before them.
func scanEndpoint(scanner rowScanner, lead ...interface{}) (models.Endpoint, error) {
	var (
		ep                                     models.Endpoint
		orgID, accountID, description, subType sql.NullString
		updated                                sql.NullTime

		webhookURL, webhookMethod, webhookSecret sql.NullString
		webhookSSL                               sql.NullBool

		camelURL, camelSecret  sql.NullString
		camelSSL               sql.NullBool
		camelAuth, camelExtras []byte

		onlyAdmins sql.NullBool
		groupID    uuid.NullUUID
	)

	dest := append(lead,
		&ep.ID, &orgID, &accountID, &ep.Name, &description, &ep.Type, &subType,
		&ep.Enabled, &ep.Status, &ep.ServerErrors, &ep.Created, &updated,
		&webhookURL, &webhookMethod, &webhookSSL, &webhookSecret,
		&camelURL, &camelSSL, &camelSecret, &camelAuth, &camelExtras,
		&onlyAdmins, &groupID,
	)
	if err := scanner.Scan(dest...); err != nil {
		return models.Endpoint{}, err
	}

	ep.OrgID = nullStringPtr(orgID)
	ep.AccountID = nullStringPtr(accountID)
	ep.Description = description.String
	ep.SubType = nullStringPtr(subType)
	ep.Updated = nullTimePtr(updated)

	switch ep.Type {
	case models.EndpointTypeWebhook:
		if webhookURL.Valid {
			ep.Properties = models.WebhookProperties{
				URL:                    webhookURL.String,
				Method:                 webhookMethod.String,
				DisableSSLVerification: webhookSSL.Bool,
				SecretToken:            nullStringPtr(webhookSecret),
			}
		}
	case models.EndpointTypeCamel:
		if camelURL.Valid {
			props := models.CamelProperties{
				URL:                    camelURL.String,
				DisableSSLVerification: camelSSL.Bool,
				SecretToken:            nullStringPtr(camelSecret),
			}
			if len(camelAuth) > 0 {
				props.BasicAuthentication = &models.BasicAuthentication{}
				if err := json.Unmarshal(camelAuth, props.BasicAuthentication); err != nil {
					return models.Endpoint{}, errors.Wrap(err, "decode basic authentication")
				}
			}
			if len(camelExtras) > 0 {
				if err := json.Unmarshal(camelExtras, &props.Extras); err != nil {
					return models.Endpoint{}, errors.Wrap(err, "decode extras")
				}
			}
			ep.Properties = props
		}
	case models.EndpointTypeEmailSubscription, models.EndpointTypeDrawer:
		if onlyAdmins.Valid {
			props := models.SystemSubscriptionProperties{Kind: ep.Type, OnlyAdmins: onlyAdmins.Bool}
			if groupID.Valid {
				id := groupID.UUID
				props.GroupID = &id
			}
			ep.Properties = props
		}
	}
	return ep, nil
}
