// Package appservice starts, stops and configures Azure App Services
// and their deployment slots through Azure Resource Manager.
package appservice

import (
	"context"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/tslight/azure-extras/pkg/converge"
	transport "github.com/tslight/azure-extras/pkg/http"
	"github.com/tslight/azure-extras/pkg/http/client"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultInterval = 2 * time.Second
)

// Site is an App Service, or one of its slots, as ARM describes it.
// Only the fields the commands look at are decoded.
type Site struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Location   string         `json:"location"`
	Properties SiteProperties `json:"properties"`
}

type SiteProperties struct {
	State           string   `json:"state"`
	Enabled         bool     `json:"enabled"`
	DefaultHostName string   `json:"defaultHostName"`
	HostNames       []string `json:"hostNames"`
}

// SlotName is the slot part of a slot's name; ARM calls slots
// "app/slot".
func (s Site) SlotName() string {
	if i := strings.LastIndex(s.Name, "/"); i >= 0 {
		return s.Name[i+1:]
	}
	return s.Name
}

func state(s Site) string {
	return s.Properties.State
}

type sitePage struct {
	Value    []Site `json:"value"`
	NextLink string `json:"nextLink"`
}

// Client operates on the App Services of one resource group.
type Client struct {
	arm    *client.Client
	logger log.Logger

	Timeout  time.Duration
	Interval time.Duration
}

// New expects arm to be scoped to a subscription and resource group.
func New(arm *client.Client, logger log.Logger) *Client {
	return &Client{
		arm:      arm,
		logger:   logger,
		Timeout:  DefaultTimeout,
		Interval: DefaultInterval,
	}
}

// WithLogger returns a copy of the client logging to logger.
func (c *Client) WithLogger(logger log.Logger) *Client {
	logged := *c
	logged.logger = logger
	logged.arm = c.arm.WithLogger(logger)
	return &logged
}

func (c *Client) GetSite(ctx context.Context, app string) (Site, error) {
	var site Site
	if err := c.arm.Get(ctx, &site, transport.GetSite, "name", app); err != nil {
		return site, errors.Wrapf(err, "failed to get %s", app)
	}
	return site, nil
}

// ToggleSite starts or stops an app, waiting until ARM reports it
// Running or Stopped.
func (c *Client) ToggleSite(ctx context.Context, app string, action converge.Action) (Site, error) {
	get := func(ctx context.Context) (Site, error) { return c.GetSite(ctx, app) }
	return converge.Run(ctx, c.logger, converge.Toggle[Site]{
		Name:    app,
		Kind:    "site",
		Action:  action,
		Initial: get,
		Send: func(ctx context.Context) error {
			return c.arm.Post(ctx, nil, transport.SiteAction, nil, "name", app, "action", string(action))
		},
		Observe:  get,
		State:    state,
		Interval: c.Interval,
		Timeout:  c.Timeout,
	})
}

// ListSlots returns every deployment slot of app, following ARM's
// paging.
func (c *Client) ListSlots(ctx context.Context, app string) ([]Site, error) {
	var page sitePage
	if err := c.arm.Get(ctx, &page, transport.ListSlots, "name", app); err != nil {
		return nil, errors.Wrapf(err, "failed to get slots for %s", app)
	}
	slots := page.Value
	for page.NextLink != "" {
		next := page.NextLink
		page = sitePage{}
		if err := c.arm.GetURL(ctx, &page, next); err != nil {
			return nil, errors.Wrapf(err, "failed to get slots for %s", app)
		}
		slots = append(slots, page.Value...)
	}
	return slots, nil
}

func (c *Client) GetSlot(ctx context.Context, app, slot string) (Site, error) {
	var site Site
	if err := c.arm.Get(ctx, &site, transport.GetSlot, "name", app, "slot", slot); err != nil {
		return site, errors.Wrapf(err, "failed to get %s/%s", app, slot)
	}
	return site, nil
}

// ToggleSlot is ToggleSite for a deployment slot.
func (c *Client) ToggleSlot(ctx context.Context, app, slot string, action converge.Action) (Site, error) {
	get := func(ctx context.Context) (Site, error) { return c.GetSlot(ctx, app, slot) }
	return converge.Run(ctx, c.logger, converge.Toggle[Site]{
		Name:    app + "/" + slot,
		Kind:    "slot",
		Action:  action,
		Initial: get,
		Send: func(ctx context.Context) error {
			return c.arm.Post(ctx, nil, transport.SlotAction, nil, "name", app, "slot", slot, "action", string(action))
		},
		Observe:  get,
		State:    state,
		Interval: c.Interval,
		Timeout:  c.Timeout,
	})
}
