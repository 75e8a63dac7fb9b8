package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gymdir/internal/app"
	"gymdir/internal/domain"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		status, region, city, q, cursor string
		limit                           int
		asJSON                          bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidates, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			query := app.ListQuery{Cursor: cursor, Limit: limit}
			if status != "" {
				s := domain.CandidateStatus(status)
				query.Status = &s
			}
			query.Region, query.City, query.Q = optional(region), optional(city), optional(q)

			page, err := eng.Queries.ListCandidates(cmd.Context(), query)
			if err != nil {
				return err
			}
			if asJSON {
				out := struct {
					Items      []candidateJSON `json:"items"`
					NextCursor *string         `json:"next_cursor"`
				}{Items: make([]candidateJSON, 0, len(page.Items)), NextCursor: page.NextCursor}
				for _, c := range page.Items {
					out.Items = append(out.Items, toCandidateJSON(c))
				}
				return writeJSON(cmd, out)
			}

			rows := make([][]string, 0, len(page.Items))
			for _, c := range page.Items {
				rows = append(rows, []string{
					strconv.FormatInt(c.ID, 10),
					string(c.Status),
					c.Name,
					c.Region + "/" + c.City,
					c.CreatedAt.Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Status", "Name", "Area", "Created"}, rows, 0))
			if page.NextCursor != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "next: --cursor %s\n", *page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (new, reviewing, approved, rejected, ignored)")
	cmd.Flags().StringVar(&region, "region", "", "Filter by region slug")
	cmd.Flags().StringVar(&city, "city", "", "Filter by city slug")
	cmd.Flags().StringVarP(&q, "query", "q", "", "Substring match on name or address")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue after a previous page")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a candidate with similar catalog gyms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			d, err := eng.Queries.GetDetail(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				out := struct {
					Candidate candidateJSON `json:"candidate"`
					Similar   []gymJSON     `json:"similar"`
				}{Candidate: toCandidateJSON(d.Candidate), Similar: make([]gymJSON, 0, len(d.Similar))}
				for _, g := range d.Similar {
					out.Similar = append(out.Similar, toGymJSON(g))
				}
				return writeJSON(cmd, out)
			}

			c := d.Candidate
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "#%d %s [%s]\n", c.ID, c.Name, c.Status)
			fmt.Fprintf(w, "area:    %s/%s\n", c.Region, c.City)
			if c.Address != "" {
				fmt.Fprintf(w, "address: %s\n", c.Address)
			}
			fmt.Fprintf(w, "source:  %s\n", c.SourceURL)
			if h := c.Payload.Review; h != nil {
				switch {
				case h.DuplicateOf != 0:
					fmt.Fprintf(w, "review:  duplicate of #%d\n", h.DuplicateOf)
				case h.GymID != 0:
					fmt.Fprintf(w, "review:  matches gym %q by %s\n", h.GymSlug, h.Strategy)
				}
			}
			if r := c.Payload.Rejection; r != nil {
				for _, e := range r.Entries {
					fmt.Fprintf(w, "rejected %s: %s\n", e.At.Format(time.DateTime), e.Reason)
				}
			}

			if len(c.Payload.Equipments) > 0 {
				rows := make([][]string, 0, len(c.Payload.Equipments))
				for _, e := range c.Payload.Equipments {
					rows = append(rows, []string{e.Slug, intOrDash(e.Count), intOrDash(e.MaxCapacity)})
				}
				fmt.Fprintln(w, renderTable([]string{"Equipment", "Count", "Max"}, rows, 1, 2))
			}
			if len(d.Similar) > 0 {
				rows := make([][]string, 0, len(d.Similar))
				for _, g := range d.Similar {
					rows = append(rows, []string{strconv.FormatInt(g.ID, 10), g.Slug, g.Name})
				}
				fmt.Fprintln(w, renderTable([]string{"Gym", "Slug", "Name"}, rows, 0))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid candidate id %q", s)
	}
	return id, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func intOrDash(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

type candidateJSON struct {
	ID         int64                  `json:"id"`
	SourceURL  string                 `json:"source_url"`
	Name       string                 `json:"name"`
	Address    string                 `json:"address,omitempty"`
	Region     string                 `json:"region"`
	City       string                 `json:"city"`
	Latitude   *float64               `json:"latitude,omitempty"`
	Longitude  *float64               `json:"longitude,omitempty"`
	Status     domain.CandidateStatus `json:"status"`
	Payload    domain.Payload         `json:"payload"`
	CreatedAt  time.Time              `json:"created_at"`
	ReviewedAt *time.Time             `json:"reviewed_at,omitempty"`
}

func toCandidateJSON(c domain.Candidate) candidateJSON {
	return candidateJSON{
		ID: c.ID, SourceURL: c.SourceURL, Name: c.Name, Address: c.Address,
		Region: c.Region, City: c.City, Latitude: c.Latitude, Longitude: c.Longitude,
		Status: c.Status, Payload: c.Payload, CreatedAt: c.CreatedAt, ReviewedAt: c.ReviewedAt,
	}
}

type gymJSON struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Region      string `json:"region"`
	City        string `json:"city"`
	Address     string `json:"address,omitempty"`
	OfficialURL string `json:"official_url,omitempty"`
}

func toGymJSON(g domain.Gym) gymJSON {
	return gymJSON{ID: g.ID, Slug: g.Slug, Name: g.Name, Region: g.Region, City: g.City, Address: g.Address, OfficialURL: g.OfficialURL}
}
