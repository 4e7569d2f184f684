// Package fit reads activity and body metrics from the Google Fitness API
// with a user's access token.
package fit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/logger"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/fitness/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const me = "me"

var errNoToken = errors.New("no google fit access token")

type Client struct {
	endpoint string
	base     http.RoundTripper
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Client)

// WithEndpoint overrides the Fitness API base path.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLocation sets the time zone calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		base: otelhttp.NewTransport(http.DefaultTransport),
		now:  time.Now,
		loc:  time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) service(ctx context.Context, token string) (*fitness.Service, error) {
	if token == "" {
		return nil, apperr.NewFetchFailed(errNoToken)
	}
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   c.base,
		},
	}
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := fitness.NewService(ctx, opts...)
	if err != nil {
		return nil, apperr.NewFetchFailed(fmt.Errorf("create fitness service: %w", err))
	}
	return svc, nil
}

func fetchFailed(op string, err error) error {
	fields := []zap.Field{zap.String("op", op)}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		fields = append(fields, zap.Int("status", gerr.Code))
	}
	logger.Error("Fit: request failed", err, fields...)
	return apperr.NewFetchFailed(fmt.Errorf("%s: %w", op, err))
}

func (c *Client) midnight(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// pointValue reads the first value of the first point, preferring the
// floating point field.
func pointValue(ds *fitness.Dataset) (float64, bool) {
	if ds == nil || len(ds.Point) == 0 || ds.Point[0] == nil || len(ds.Point[0].Value) == 0 {
		return 0, false
	}
	v := ds.Point[0].Value[0]
	if v == nil {
		return 0, false
	}
	if v.FpVal != 0 {
		return v.FpVal, true
	}
	return float64(v.IntVal), true
}

func datasetAt(b *fitness.AggregateBucket, i int) *fitness.Dataset {
	if b == nil || i >= len(b.Dataset) {
		return nil
	}
	return b.Dataset[i]
}

// FetchToday aggregates today's activity in a single request.
func (c *Client) FetchToday(ctx context.Context, token string) (TodaySummary, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return TodaySummary{}, err
	}

	now := c.now()
	types := []string{TypeSteps, TypeHeartMinutes, TypeCalories, TypeDistance, TypeActiveMinutes}
	req := &fitness.AggregateRequest{
		StartTimeMillis: c.midnight(now).UnixMilli(),
		EndTimeMillis:   now.UnixMilli(),
	}
	for _, t := range types {
		req.AggregateBy = append(req.AggregateBy, &fitness.AggregateBy{DataTypeName: t})
	}

	resp, err := svc.Users.Dataset.Aggregate(me, req).Context(ctx).Do()
	if err != nil {
		return TodaySummary{}, fetchFailed("aggregate today", err)
	}

	var bucket *fitness.AggregateBucket
	if len(resp.Bucket) > 0 {
		bucket = resp.Bucket[0]
	}
	val := func(i int) float64 {
		v, _ := pointValue(datasetAt(bucket, i))
		return v
	}

	return TodaySummary{
		Steps:          int(math.Round(val(0))),
		HeartMinutes:   int(math.Round(val(1))),
		Calories:       int(math.Round(val(2))),
		DistanceMeters: val(3),
		ActiveMinutes:  int(math.Round(val(4))),
	}, nil
}

// week returns the seven local midnights ending today.
func (c *Client) week(now time.Time) []time.Time {
	today := c.midnight(now)
	days := make([]time.Time, weekDays)
	for i := range days {
		days[i] = today.AddDate(0, 0, i-(weekDays-1))
	}
	return days
}

// dailyBuckets runs a daily-bucketed aggregate over the trailing week and
// returns one bucket per day in days, nil where none came back. Buckets are
// fixed 24h spans, so across a DST change they drift off local midnight;
// each is assigned to the nearest day start.
func (c *Client) dailyBuckets(ctx context.Context, token string, op string, by []*fitness.AggregateBy, end time.Time) ([]*fitness.AggregateBucket, []time.Time, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	days := c.week(c.now())
	resp, err := svc.Users.Dataset.Aggregate(me, &fitness.AggregateRequest{
		AggregateBy:     by,
		BucketByTime:    &fitness.BucketByTime{DurationMillis: dayMillis},
		StartTimeMillis: days[0].UnixMilli(),
		EndTimeMillis:   end.UnixMilli(),
	}).Context(ctx).Do()
	if err != nil {
		return nil, nil, fetchFailed(op, err)
	}

	perDay := make([]*fitness.AggregateBucket, len(days))
	for _, b := range resp.Bucket {
		if b == nil {
			continue
		}
		if i := dayIndex(days[0], time.UnixMilli(b.StartTimeMillis)); i >= 0 && i < len(perDay) {
			perDay[i] = b
		}
	}
	return perDay, days, nil
}

func dayIndex(first, start time.Time) int {
	return int(math.Round(float64(start.Sub(first)) / float64(24*time.Hour)))
}

// FetchWeeklySeries returns steps, blood glucose and body fat for each of
// the last seven days, oldest first.
func (c *Client) FetchWeeklySeries(ctx context.Context, token string) (WeeklySeries, error) {
	by := []*fitness.AggregateBy{
		{DataTypeName: TypeSteps},
		{DataTypeName: TypeBloodGlucose},
		{DataTypeName: TypeBodyFat},
	}
	buckets, days, err := c.dailyBuckets(ctx, token, "aggregate weekly series", by, c.now())
	if err != nil {
		return WeeklySeries{}, err
	}

	series := WeeklySeries{Days: make([]DailyActivity, 0, weekDays)}
	for i, day := range days {
		date := day.Format(dateLayout)
		b := buckets[i]
		steps, _ := pointValue(datasetAt(b, 0))
		glucose, _ := pointValue(datasetAt(b, 1))
		bodyFat, _ := pointValue(datasetAt(b, 2))

		series.Days = append(series.Days, DailyActivity{
			Date:    date,
			Day:     day.Format("Mon"),
			Steps:   int(steps),
			Glucose: glucose,
			BodyFat: bodyFat,
		})
	}
	for i := len(series.Days) - 1; i >= 0; i-- {
		if series.Days[i].Steps > 0 {
			series.TodaySteps = series.Days[i].Steps
			break
		}
	}
	return series, nil
}

// FetchWeeklySteps returns daily step counts from the estimated steps
// source, labelled Today, Yest or the weekday.
func (c *Client) FetchWeeklySteps(ctx context.Context, token string) ([]DailySteps, error) {
	now := c.now()
	endOfDay := c.midnight(now).AddDate(0, 0, 1).Add(-time.Millisecond)
	by := []*fitness.AggregateBy{{DataTypeName: TypeSteps, DataSourceId: SourceEstimatedSteps}}

	buckets, days, err := c.dailyBuckets(ctx, token, "aggregate weekly steps", by, endOfDay)
	if err != nil {
		return nil, err
	}

	out := make([]DailySteps, 0, weekDays)
	for i, day := range days {
		label := day.Format("Mon")
		switch i {
		case weekDays - 1:
			label = "Today"
		case weekDays - 2:
			label = "Yest"
		}
		steps, _ := pointValue(datasetAt(buckets[i], 0))
		out = append(out, DailySteps{Date: day.Format(dateLayout), Day: label, Steps: int(steps)})
	}
	return out, nil
}

type latestPoint struct {
	source string
	values []float64
	ok     bool
	err    error
}

// FetchLatestSnapshot reads the newest point of each body metric. A metric
// that cannot be read is logged and left unknown, unless the token was
// rejected or no metric could be read at all.
func (c *Client) FetchLatestSnapshot(ctx context.Context, token string) (HealthMetrics, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return HealthMetrics{}, err
	}

	datasetID := fmt.Sprintf("0-%d", c.now().UnixNano())
	sources := []string{SourceHeight, SourceWeight, SourceBloodPressure, SourceHeartRate, SourceCalories}
	results := make([]latestPoint, len(sources))

	var wg conc.WaitGroup
	for i, source := range sources {
		wg.Go(func() {
			results[i] = c.latest(ctx, svc, source, datasetID)
		})
	}
	wg.Wait()

	if err := snapshotErr(results); err != nil {
		return HealthMetrics{}, fetchFailed("latest snapshot", err)
	}

	var m HealthMetrics
	for _, r := range results {
		if !r.ok || len(r.values) == 0 || r.values[0] == 0 {
			continue
		}
		v := r.values[0]
		switch r.source {
		case SourceHeight:
			m.HeightCm = ptr(math.Round(v * 100))
		case SourceWeight:
			m.WeightKg = ptr(math.Round(v*10) / 10)
		case SourceHeartRate:
			m.HeartRate = ptr(math.Round(v))
		case SourceCalories:
			m.Calories = ptr(math.Round(v))
		case SourceBloodPressure:
			if len(r.values) >= 2 {
				m.BloodPressure = &BloodPressure{Systolic: math.Round(r.values[0]), Diastolic: math.Round(r.values[1])}
			}
		}
	}
	return m, nil
}

// snapshotErr fails the whole snapshot on a rejected token or when every
// metric failed.
func snapshotErr(results []latestPoint) error {
	var first error
	failed := 0
	for _, r := range results {
		if r.err == nil {
			continue
		}
		if rejectedToken(r.err) {
			return r.err
		}
		if first == nil {
			first = r.err
		}
		failed++
	}
	if failed > 0 && failed == len(results) {
		return first
	}
	return nil
}

func rejectedToken(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden
}

func (c *Client) latest(ctx context.Context, svc *fitness.Service, source, datasetID string) latestPoint {
	res := latestPoint{source: source}
	ds, err := svc.Users.DataSources.Datasets.Get(me, source, datasetID).Context(ctx).Do()
	if err != nil {
		logger.Warn("Fit: could not fetch metric", zap.String("source", source), zap.Error(err))
		res.err = err
		return res
	}
	if len(ds.Point) == 0 {
		return res
	}
	last := ds.Point[len(ds.Point)-1]
	if last == nil {
		return res
	}
	for _, v := range last.Value {
		if v == nil {
			continue
		}
		if v.FpVal != 0 {
			res.values = append(res.values, v.FpVal)
		} else {
			res.values = append(res.values, float64(v.IntVal))
		}
	}
	res.ok = true
	return res
}

func ptr[T any](v T) *T {
	return &v
}
