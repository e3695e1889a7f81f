package flaresolverr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type FlareSolverr struct {
	URL    string
	Client *http.Client
}

type getOptions struct {
	Cmd               string   `json:"cmd"`
	URL               string   `json:"url"`
	MaxTimeout        int      `json:"maxTimeout,omitempty"`
	Cookies           []Cookie `json:"cookies,omitempty"`
	ReturnOnlyCookies bool     `json:"returnOnlyCookies,omitempty"`
	WaitInSeconds     int      `json:"waitInSeconds,omitempty"`
	DisableMedia      bool     `json:"disableMedia,omitempty"`
}

type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type GetResponse struct {
	Solution struct {
		Url       string            `json:"url"`
		Status    int               `json:"status"`
		Cookies   []Cookie          `json:"cookies"`
		UserAgent string            `json:"userAgent"`
		Headers   map[string]string `json:"headers"`
		Response  string            `json:"response"`
	} `json:"solution"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	Session        string `json:"session,omitempty"`
	StartTimestamp int64  `json:"startTimestamp"`
	EndTimestamp   int64  `json:"endTimestamp"`
	Version        string `json:"version"`
}

const StatusOK = "ok"

type GetOption = func(*getOptions)

func WithDisabledMedia() func(o *getOptions) {
	return func(o *getOptions) {
		o.DisableMedia = true
	}
}

func WithMaxTimeout(d time.Duration) func(o *getOptions) {
	return func(o *getOptions) {
		o.MaxTimeout = int(d / time.Millisecond)
	}
}

func WithCookies(cookies ...Cookie) func(o *getOptions) {
	return func(o *getOptions) {
		o.Cookies = append(o.Cookies, cookies...)
	}
}

func (f FlareSolverr) Get(ctx context.Context, url string, opts ...GetOption) (*GetResponse, error) {
	reqOptions := &getOptions{
		Cmd: "request.get",
		URL: url,
	}

	for _, optFunc := range opts {
		optFunc(reqOptions)
	}

	payload, err := json.Marshal(&reqOptions)
	if err != nil {
		return nil, fmt.Errorf("unable marshal getoptions. %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("unable to build FlareSolverr get request. %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	r, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to make FlareSolverr get request. %w", err)
	}
	defer r.Body.Close()

	res := GetResponse{}
	d := json.NewDecoder(r.Body)
	err = d.Decode(&res)
	if err != nil {
		return nil, fmt.Errorf("unable to decode FlareSolverr get response. %w", err)
	}

	if res.Status != StatusOK {
		return &res, fmt.Errorf("unexpected FlareSolverr status: status=%s message=%s", res.Status, res.Message)
	}

	return &res, nil
}
