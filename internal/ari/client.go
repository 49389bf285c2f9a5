// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_ari

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/rapidaai/ari-voice-gateway/pkg/commons"
)

// Client is the call-control contract the session layer depends on. The
// concrete implementation talks ARI REST; tests substitute a fake.
type Client interface {
	Answer(ctx context.Context, channelID string) error
	Hangup(ctx context.Context, channelID string) error
	ContinueInDialplan(ctx context.Context, channelID string) error

	GetChannelDetail(ctx context.Context, channelID string) (*Channel, error)
	GetChannelVariable(ctx context.Context, channelID, name string) (string, error)
	SetChannelVariable(ctx context.Context, channelID, name, value string) error

	CreateBridge(ctx context.Context, bridgeID, bridgeType string) (*Bridge, error)
	AddChannelToBridge(ctx context.Context, bridgeID, channelID string) error
	DestroyBridge(ctx context.Context, bridgeID string) error

	SnoopChannel(ctx context.Context, channelID, snoopID, spy, appArgs string) (*Channel, error)
	CreateExternalMedia(ctx context.Context, channelID, host, format, data string) (*Channel, error)

	PlayOnBridge(ctx context.Context, bridgeID, media, playbackID string) error
	StopPlayback(ctx context.Context, playbackID string) error
}

type restClient struct {
	http    *resty.Client
	appName string
	logger  commons.Logger
}

// NewClient builds the ARI REST client with basic auth against
// <baseURL>/ari.
func NewClient(logger commons.Logger, baseURL, username, password, appName string) Client {
	http := resty.New().
		SetBaseURL(baseURL + "/ari").
		SetBasicAuth(username, password)

	return &restClient{
		http:    http,
		appName: appName,
		logger:  logger,
	}
}

// expect verifies the switch accepted the request; error bodies become part
// of the wrapped error so SwitchIoError logs carry the reason.
func expect(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("ari %s: %w", op, err)
	}
	if resp.IsError() {
		return fmt.Errorf("ari %s: status %d: %s", op, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *restClient) Answer(ctx context.Context, channelID string) error {
	resp, err := c.http.R().SetContext(ctx).
		Post(fmt.Sprintf("/channels/%s/answer", channelID))
	return expect(resp, err, "answer")
}

func (c *restClient) Hangup(ctx context.Context, channelID string) error {
	resp, err := c.http.R().SetContext(ctx).
		Delete(fmt.Sprintf("/channels/%s", channelID))
	return expect(resp, err, "hangup")
}

func (c *restClient) ContinueInDialplan(ctx context.Context, channelID string) error {
	resp, err := c.http.R().SetContext(ctx).
		Post(fmt.Sprintf("/channels/%s/continue", channelID))
	return expect(resp, err, "continue")
}

func (c *restClient) GetChannelDetail(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	resp, err := c.http.R().SetContext(ctx).
		SetResult(&ch).
		Get(fmt.Sprintf("/channels/%s", channelID))
	if err := expect(resp, err, "get channel"); err != nil {
		return nil, err
	}
	return &ch, nil
}

// ErrVariableUnset marks a variable the dialplan never assigned.
var ErrVariableUnset = fmt.Errorf("channel variable not set")

func (c *restClient) GetChannelVariable(ctx context.Context, channelID, name string) (string, error) {
	var out struct {
		Value string `json:"value"`
	}
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("variable", name).
		SetResult(&out).
		Get(fmt.Sprintf("/channels/%s/variable", channelID))
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrVariableUnset, name)
	}
	if err := expect(resp, err, "get variable"); err != nil {
		return "", err
	}
	return out.Value, nil
}

func (c *restClient) SetChannelVariable(ctx context.Context, channelID, name, value string) error {
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"variable": name,
			"value":    value,
		}).
		Post(fmt.Sprintf("/channels/%s/variable", channelID))
	return expect(resp, err, "set variable")
}

func (c *restClient) CreateBridge(ctx context.Context, bridgeID, bridgeType string) (*Bridge, error) {
	var bridge Bridge
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"type":     bridgeType,
			"bridgeId": bridgeID,
		}).
		SetResult(&bridge).
		Post("/bridges")
	if err := expect(resp, err, "create bridge"); err != nil {
		return nil, err
	}
	return &bridge, nil
}

func (c *restClient) AddChannelToBridge(ctx context.Context, bridgeID, channelID string) error {
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("channel", channelID).
		Post(fmt.Sprintf("/bridges/%s/addChannel", bridgeID))
	return expect(resp, err, "add channel to bridge")
}

func (c *restClient) DestroyBridge(ctx context.Context, bridgeID string) error {
	resp, err := c.http.R().SetContext(ctx).
		Delete(fmt.Sprintf("/bridges/%s", bridgeID))
	return expect(resp, err, "destroy bridge")
}

func (c *restClient) SnoopChannel(ctx context.Context, channelID, snoopID, spy, appArgs string) (*Channel, error) {
	var ch Channel
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"app":     c.appName,
			"appArgs": appArgs,
			"spy":     spy,
			"whisper": "none",
			"snoopId": snoopID,
		}).
		SetResult(&ch).
		Post(fmt.Sprintf("/channels/%s/snoop", channelID))
	if err := expect(resp, err, "snoop channel"); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *restClient) CreateExternalMedia(ctx context.Context, channelID, host, format, data string) (*Channel, error) {
	var ch Channel
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"app":           c.appName,
			"channelId":     channelID,
			"external_host": host,
			"format":        format,
			"encapsulation": "rtp",
			"transport":     "udp",
			"direction":     "both",
			"data":          data,
		}).
		SetResult(&ch).
		Post("/channels/externalMedia")
	if err := expect(resp, err, "create external media"); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *restClient) PlayOnBridge(ctx context.Context, bridgeID, media, playbackID string) error {
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"media":      media,
			"playbackId": playbackID,
		}).
		Post(fmt.Sprintf("/bridges/%s/play", bridgeID))
	return expect(resp, err, "play on bridge")
}

func (c *restClient) StopPlayback(ctx context.Context, playbackID string) error {
	resp, err := c.http.R().SetContext(ctx).
		Delete(fmt.Sprintf("/playbacks/%s", playbackID))
	return expect(resp, err, "stop playback")
}
