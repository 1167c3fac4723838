package notifier

import (
	"ceksiak/internal/assert"
	"ceksiak/internal/siak"
	"ceksiak/internal/telemetry"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const DiscordBaseUrl = "https://discord.com/api/v10"

const (
	report_discord_verify = "discord.verify"
	report_discord_notify = "discord.notify"
)

// embed color, the yellow of the university
const embedColor = 0xf7d117

var ErrUnsupportedChannel = errors.New("notifier: channel cannot receive messages")

// channel types that accept bot messages
// https://discord.com/developers/docs/resources/channel#channel-object-channel-types
var messageChannelTypes = map[int]string{
	0:  "guild text",
	1:  "dm",
	3:  "group dm",
	5:  "announcement",
	10: "announcement thread",
	11: "public thread",
	12: "private thread",
}

type DiscordOptions struct {
	Token     string
	ChannelId string
	// defaults to DiscordBaseUrl
	BaseUrl string
	// defaults to 15 seconds
	Timeout time.Duration
}

type discordError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type discordUser struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type discordChannel struct {
	Id   string `json:"id"`
	Type int    `json:"type"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Discord posts notifications to a single channel through the REST API with a bot token.
type Discord struct {
	Http      *resty.Client
	channelId string
	tel       telemetry.API
}

func NewDiscord(opts DiscordOptions, tel telemetry.API) *Discord {
	assert.NotEmptyStr(opts.Token, "discord token")
	assert.NotEmptyStr(opts.ChannelId, "discord channel id")
	assert.NotNil(tel, "telemetry")
	tel = telemetry.NewScopedAPI("notifier", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DiscordBaseUrl
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 15
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetAuthScheme("Bot")
	client.SetAuthToken(opts.Token)
	client.SetHeader("user-agent", "DiscordBot (https://github.com/ceksiak/ceksiak, 2)")
	client.SetTimeout(opts.Timeout)
	client.SetError(&discordError{})

	client.SetRetryCount(3)
	client.SetRetryWaitTime(time.Second)
	client.SetRetryMaxWaitTime(time.Second * 10)
	client.AddRetryCondition(shouldRetry)

	telemetry.InstrumentResty(client, tel)

	return &Discord{
		Http:      client,
		channelId: opts.ChannelId,
		tel:       tel,
	}
}

// shouldRetry retries reads on transport errors, 429 and 5xx. Anything that is not a
// GET is only retried on 429 so a message is never posted twice.
func shouldRetry(res *resty.Response, err error) bool {
	if res != nil && res.Request != nil && res.Request.Method != http.MethodGet {
		return res.StatusCode() == http.StatusTooManyRequests
	}
	if err != nil || res == nil {
		return true
	}
	return res.StatusCode() == http.StatusTooManyRequests ||
		res.StatusCode() >= 500
}

func responseError(res *resty.Response) error {
	apiErr, ok := res.Error().(*discordError)
	if ok && apiErr.Message != "" {
		return fmt.Errorf("%s %s: %s (%d)", res.Request.Method, res.Request.URL, apiErr.Message, apiErr.Code)
	}
	return fmt.Errorf("%s %s: unexpected status %s", res.Request.Method, res.Request.URL, res.Status())
}

// Verify checks that the token is accepted by Discord.
func (d *Discord) Verify(ctx context.Context) error {
	var user discordUser
	res, err := d.Http.R().
		SetContext(ctx).
		SetResult(&user).
		Get("/users/@me")
	if err != nil {
		d.tel.ReportBroken(report_discord_verify, err)
		return fmt.Errorf("notifier: verify discord token: %w", err)
	}
	if res.IsError() {
		err = responseError(res)
		d.tel.ReportBroken(report_discord_verify, err)
		return fmt.Errorf("notifier: verify discord token: %w", err)
	}

	d.tel.ReportDebug("connected to discord", user.Username)
	return nil
}

func (d *Discord) channel(ctx context.Context) (discordChannel, error) {
	var channel discordChannel
	res, err := d.Http.R().
		SetContext(ctx).
		SetResult(&channel).
		SetPathParam("channel", d.channelId).
		Get("/channels/{channel}")
	if err != nil {
		return discordChannel{}, err
	}
	if res.IsError() {
		return discordChannel{}, responseError(res)
	}
	return channel, nil
}

func (d *Discord) Notify(ctx context.Context, courses []siak.Course) error {
	channel, err := d.channel(ctx)
	if err != nil {
		d.tel.ReportBroken(report_discord_notify, fmt.Errorf("resolve channel: %w", err))
		return fmt.Errorf("notifier: discord: %w", err)
	}
	kind, ok := messageChannelTypes[channel.Type]
	if !ok {
		d.tel.ReportWarning(report_discord_notify, "unsupported channel type", d.channelId, channel.Type)
		return fmt.Errorf("%w: %s has type %d", ErrUnsupportedChannel, d.channelId, channel.Type)
	}

	res, err := d.Http.R().
		SetContext(ctx).
		SetPathParam("channel", d.channelId).
		SetBody(discordMessage{
			Embeds: []discordEmbed{{
				Title:       Title,
				Description: Format(courses),
				Color:       embedColor,
				Timestamp:   time.Now().UTC().Format(time.RFC3339),
			}},
		}).
		Post("/channels/{channel}/messages")
	if err != nil {
		d.tel.ReportBroken(report_discord_notify, err)
		return fmt.Errorf("notifier: discord: %w", err)
	}
	if res.IsError() {
		err = responseError(res)
		d.tel.ReportBroken(report_discord_notify, err)
		return fmt.Errorf("notifier: discord: %w", err)
	}

	d.tel.ReportDebug("sent notification", d.channelId, kind)
	return nil
}
