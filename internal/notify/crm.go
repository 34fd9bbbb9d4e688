package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

// CRM records a lead for a new booking in one provider.
type CRM interface {
	Name() string
	AddLead(ctx context.Context, n model.Notification) error
}

// CRMConfig selects and configures the CRM provider.
type CRMConfig struct {
	Provider string

	HubSpotKey string
	HubSpotURL string

	SalesforceLoginURL      string
	SalesforceClientID      string
	SalesforceClientSecret  string
	SalesforceUsername      string
	SalesforcePassword      string
	SalesforceSecurityToken string

	PipedriveToken string
	PipedriveURL   string
}

// NewCRM returns the CRM for cfg.Provider. Unknown providers are a no-op.
func NewCRM(cfg CRMConfig, client *http.Client, log logrus.FieldLogger) CRM {
	switch strings.ToLower(cfg.Provider) {
	case "hubspot", "":
		return &HubSpot{client: client, baseURL: strings.TrimRight(cfg.HubSpotURL, "/"), apiKey: cfg.HubSpotKey}
	case "salesforce":
		return &Salesforce{
			client:       client,
			loginURL:     strings.TrimRight(cfg.SalesforceLoginURL, "/"),
			clientID:     cfg.SalesforceClientID,
			clientSecret: cfg.SalesforceClientSecret,
			username:     cfg.SalesforceUsername,
			password:     cfg.SalesforcePassword + cfg.SalesforceSecurityToken,
		}
	case "pipedrive":
		return &Pipedrive{client: client, baseURL: strings.TrimRight(cfg.PipedriveURL, "/"), token: cfg.PipedriveToken}
	default:
		log.WithField("provider", cfg.Provider).Info("no CRM provider configured")
		return noopCRM{}
	}
}

// HubSpot creates contacts through the CRM v3 objects API.
type HubSpot struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func (h *HubSpot) Name() string { return "hubspot" }

func (h *HubSpot) AddLead(ctx context.Context, n model.Notification) error {
	body := map[string]any{
		"properties": map[string]string{
			"email":             n.Email,
			"firstname":         n.FirstName,
			"lastname":          n.LastName,
			"phone":             n.Phone,
			"company":           n.BusinessName,
			"lifecyclestage":    "lead",
			"booking_id":        n.BookingID,
			"service_requested": n.ServiceName,
			"preferred_date":    n.PreferredDate,
			"notes":             n.Message,
		},
	}
	var out struct {
		ID string `json:"id"`
	}
	return doJSON(ctx, h.client, h.Name(), http.MethodPost, h.baseURL+"/crm/v3/objects/contacts",
		map[string]string{"Authorization": "Bearer " + h.apiKey}, body, &out)
}

// Salesforce creates Lead objects after a username-password OAuth exchange.
type Salesforce struct {
	client       *http.Client
	loginURL     string
	clientID     string
	clientSecret string
	username     string
	password     string
}

func (s *Salesforce) Name() string { return "salesforce" }

func (s *Salesforce) AddLead(ctx context.Context, n model.Notification) error {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"username":      {s.username},
		"password":      {s.password},
	}
	var auth struct {
		AccessToken string `json:"access_token"`
		InstanceURL string `json:"instance_url"`
	}
	if err := doForm(ctx, s.client, s.Name(), s.loginURL+"/services/oauth2/token", form.Encode(), &auth); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	company := n.BusinessName
	if company == "" {
		company = "Unknown"
	}
	body := map[string]string{
		"FirstName":   n.FirstName,
		"LastName":    n.LastName,
		"Email":       n.Email,
		"Phone":       n.Phone,
		"Company":     company,
		"LeadSource":  "Website",
		"Description": fmt.Sprintf("Booking ID: %s\nService: %s\nPreferred Date: %s\n\n%s", n.BookingID, n.ServiceName, n.PreferredDate, n.Message),
	}
	return doJSON(ctx, s.client, s.Name(), http.MethodPost,
		strings.TrimRight(auth.InstanceURL, "/")+"/services/data/v58.0/sobjects/Lead",
		map[string]string{"Authorization": "Bearer " + auth.AccessToken}, body, nil)
}

// Pipedrive creates a person and an open deal for the booking.
type Pipedrive struct {
	client  *http.Client
	baseURL string
	token   string
}

func (p *Pipedrive) Name() string { return "pipedrive" }

func (p *Pipedrive) AddLead(ctx context.Context, n model.Notification) error {
	type contact struct {
		Value   string `json:"value"`
		Primary bool   `json:"primary"`
	}
	headers := map[string]string{"x-api-token": p.token}

	var person struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	err := doJSON(ctx, p.client, p.Name(), http.MethodPost, p.baseURL+"/v1/persons", headers, map[string]any{
		"name":  strings.TrimSpace(n.FirstName + " " + n.LastName),
		"email": []contact{{Value: n.Email, Primary: true}},
		"phone": []contact{{Value: n.Phone, Primary: true}},
	}, &person)
	if err != nil {
		return fmt.Errorf("create person: %w", err)
	}

	err = doJSON(ctx, p.client, p.Name(), http.MethodPost, p.baseURL+"/v1/deals", headers, map[string]any{
		"title":     fmt.Sprintf("%s - %s %s", n.ServiceName, n.FirstName, n.LastName),
		"person_id": person.Data.ID,
		"value":     dealValue(n.ServicePrice),
		"currency":  "USD",
		"status":    "open",
	}, nil)
	if err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	return nil
}

// dealValue takes the lower bound of a price range such as "175-600".
func dealValue(price string) float64 {
	lower, _, _ := strings.Cut(strings.TrimSpace(price), "-")
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(lower, "$")), 64)
	if err != nil {
		return 0
	}
	return v
}

type noopCRM struct{}

func (noopCRM) Name() string { return "none" }

func (noopCRM) AddLead(context.Context, model.Notification) error { return nil }
