package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
)

// maxPages stops --all from following after keys forever
const maxPages = 10000

var (
	serverURLFlag = &cli.StringFlag{
		Name:    "url",
		Usage:   "Base URL of the risk score server",
		Value:   "http://localhost:8080",
		Sources: cli.EnvVars("RISKCTL_URL"),
	}

	apiVersionFlag = &cli.StringFlag{
		Name:  "api-version",
		Usage: "Preview API version (optional, defaults to the latest)",
	}

	dataViewIDFlag = &cli.StringFlag{
		Name:     "data-view-id",
		Usage:    "Data view whose sources are scored",
		Required: true,
	}

	identifierTypeFlag = &cli.StringFlag{
		Name:  "identifier-type",
		Usage: "Score only this identifier type [host, user]",
	}

	pageSizeFlag = &cli.IntFlag{
		Name:  "page-size",
		Usage: "Entities per identifier type per page (optional, server default when unset)",
	}

	startFlag = &cli.StringFlag{
		Name:  "start",
		Usage: "Range start, date math or timestamp",
		Value: riskscore.DefaultRangeStart,
	}

	endFlag = &cli.StringFlag{
		Name:  "end",
		Usage: "Range end, date math or timestamp",
		Value: riskscore.DefaultRangeEnd,
	}

	filterFlag = &cli.StringFlag{
		Name:  "filter",
		Usage: `Filter clause as JSON, e.g. '{"term":{"host.name":"web-01"}}'`,
	}

	includeDebugFlag = &cli.BoolFlag{
		Name:  "include-debug",
		Usage: "Ask the server to attach the resolved request and queries",
	}

	allPagesFlag = &cli.BoolFlag{
		Name:  "all",
		Usage: "Follow after keys until every entity is scored",
	}

	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Per request timeout",
		Value: time.Minute,
	}

	previewCmd = &cli.Command{
		Name:    "preview",
		Aliases: []string{"p"},
		Usage:   "Preview entity risk scores without persisting them",
		Flags: []cli.Flag{
			serverURLFlag,
			apiVersionFlag,
			dataViewIDFlag,
			identifierTypeFlag,
			pageSizeFlag,
			startFlag,
			endFlag,
			filterFlag,
			includeDebugFlag,
			allPagesFlag,
			timeoutFlag,
		},
		Action: cmdPreview,
	}
)

func cmdPreview(ctx context.Context, cmd *cli.Command) error {
	req, err := previewRequestFromFlags(cmd)
	if err != nil {
		return err
	}

	client := newPreviewClient(cmd.String(serverURLFlag.Name), cmd.String(apiVersionFlag.Name), cmd.Duration(timeoutFlag.Name))

	var result *riskscore.ScoreResult
	if cmd.Bool(allPagesFlag.Name) {
		result, err = previewAll(ctx, client, req)
	} else {
		result, err = client.Preview(ctx, req)
	}
	if err != nil {
		return err
	}

	return encode(os.Stdout, cmd.String(formatFlag.Name), result)
}

func previewRequestFromFlags(cmd *cli.Command) (riskscore.PreviewRequest, error) {
	req := riskscore.PreviewRequest{
		DataViewID:     cmd.String(dataViewIDFlag.Name),
		Debug:          cmd.Bool(includeDebugFlag.Name),
		IdentifierType: riskscore.IdentifierType(cmd.String(identifierTypeFlag.Name)),
		Range: &riskscore.DateRange{
			Start: cmd.String(startFlag.Name),
			End:   cmd.String(endFlag.Name),
		},
	}

	if req.IdentifierType != "" && !req.IdentifierType.Valid() {
		return req, fmt.Errorf("unsupported identifier type %q", req.IdentifierType)
	}
	if cmd.IsSet(pageSizeFlag.Name) {
		pageSize := int(cmd.Int(pageSizeFlag.Name))
		req.PageSize = &pageSize
	}
	if raw := cmd.String(filterFlag.Name); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Filter); err != nil {
			return req, fmt.Errorf("parsing --filter: %w", err)
		}
	}
	return req, nil
}

// previewAll pages each identifier type on its own so an exhausted type is
// not restarted while another one still has entities left
func previewAll(ctx context.Context, client *previewClient, req riskscore.PreviewRequest) (*riskscore.ScoreResult, error) {
	types := riskscore.IdentifierTypes
	if req.IdentifierType != "" {
		types = []riskscore.IdentifierType{req.IdentifierType}
	}

	combined := &riskscore.ScoreResult{
		AfterKeys: riskscore.AfterKeys{},
		Scores:    map[riskscore.IdentifierType][]riskscore.EntityScore{},
	}
	for _, identifierType := range types {
		pageReq := req
		pageReq.IdentifierType = identifierType
		pageReq.AfterKeys = nil
		combined.Scores[identifierType] = []riskscore.EntityScore{}

		for page := 0; ; page++ {
			if page >= maxPages {
				return nil, fmt.Errorf("%s: gave up after %d pages", identifierType, maxPages)
			}

			result, err := client.Preview(ctx, pageReq)
			if err != nil {
				return nil, err
			}
			scores := result.Scores[identifierType]
			combined.Scores[identifierType] = append(combined.Scores[identifierType], scores...)
			if result.Debug != nil {
				combined.Debug = result.Debug
			}

			afterKey, ok := result.AfterKeys[identifierType]
			if len(scores) == 0 || !ok {
				break
			}
			log.Debug("Fetched page", "identifier_type", string(identifierType), "page", page, "entities", len(scores))
			pageReq.AfterKeys = riskscore.AfterKeys{identifierType: afterKey}
		}
	}
	return combined, nil
}
