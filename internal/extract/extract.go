package extract

import (
	"bankcap/internal/dataset"
	"bankcap/internal/etlerr"
	"bankcap/lib/htmlutil"
	"bankcap/lib/restyutil"
	"bankcap/lib/telemetry"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = telemetry.Tracer("bankcap.internal.extract")

// ErrNoRows is wrapped by the parse error returned when a table body is
// found but none of its rows carry cells.
var ErrNoRows = errors.New("no qualifying rows")

// ErrNoTable is wrapped by the parse error returned when the document
// has no table body.
var ErrNoTable = errors.New("no table body")

const (
	DefaultTimeout   = time.Second * 30
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	nameCell      = 1
	magnitudeCell = 2
)

type Options struct {
	// Timeout bounds the single fetch attempt, DefaultTimeout when zero.
	Timeout   time.Duration
	UserAgent string
	// CloudflareBypass routes requests through a transport that mimics a
	// browser TLS handshake, some archive mirrors sit behind cloudflare.
	CloudflareBypass bool
	// Instrument receives request/response dumps while debug logging is on.
	Instrument restyutil.InstrumentOutput
}

type Extractor struct {
	http *resty.Client
}

func New(opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetRetryCount(0)
	client.SetHeader("user-agent", opts.UserAgent)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	restyutil.InstrumentClient(client, tracer, opts.Instrument)

	return &Extractor{http: client}
}

// Extract fetches `url` once and parses its table into `columns`
// (the name column label followed by the base magnitude column label).
func (e *Extractor) Extract(ctx context.Context, url string, columns []string) (dataset.Table, error) {
	ctx, span := tracer.Start(ctx, "Extract")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	res, err := e.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		span.RecordError(err)
		return dataset.Table{}, classifyTransportError(err, url)
	}
	if res.IsError() {
		return dataset.Table{}, etlerr.FetchStatus(res.StatusCode(), url)
	}

	table, err := Parse(ctx, bytes.NewReader(res.Body()), columns)
	if err != nil {
		span.RecordError(err)
		return dataset.Table{}, err
	}
	span.SetAttributes(attribute.Int("rows", len(table.Rows)))
	return table, nil
}

func classifyTransportError(err error, url string) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return etlerr.Fetch(err, "request to %s timed out", url)
	}
	if errors.Is(err, context.Canceled) {
		return etlerr.Fetch(err, "request to %s was cancelled", url)
	}
	return etlerr.Fetch(err, "request to %s failed", url)
}

// Parse reads the first table body in the document. Every row with at
// least one cell must have a name in its second cell and a magnitude in
// its third, rows without cells (headers, separators) are skipped.
// Document order is preserved.
func Parse(ctx context.Context, r io.Reader, columns []string) (dataset.Table, error) {
	if len(columns) != 2 {
		return dataset.Table{}, etlerr.Parse(nil, "expected a name and a magnitude column, got %v", columns)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return dataset.Table{}, etlerr.Parse(err, "document is not valid html")
	}

	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return dataset.Table{}, etlerr.Parse(ErrNoTable, "document has no table")
	}

	table := dataset.Table{Columns: append([]string(nil), columns...)}
	var parseErr error
	tbody.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return true
		}
		if cells.Length() <= magnitudeCell {
			parseErr = etlerr.Parse(nil, "row %d has %d cells, expected at least %d", i, cells.Length(), magnitudeCell+1)
			return false
		}

		name := htmlutil.GetStrippedText(cells.Get(nameCell))
		magnitude := htmlutil.GetStrippedText(cells.Get(magnitudeCell))
		table.Rows = append(table.Rows, []string{name, magnitude})
		return true
	})
	if parseErr != nil {
		return dataset.Table{}, parseErr
	}
	if len(table.Rows) == 0 {
		return dataset.Table{}, etlerr.Parse(ErrNoRows, "table body has no rows with cells")
	}

	slog.DebugContext(ctx, "parsed source table", "rows", len(table.Rows))
	return table, nil
}
