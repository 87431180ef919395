package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"sysmanage/database"
)

// HostReportRow is one line of the fleet inventory report.
type HostReportRow struct {
	FQDN            string     `json:"fqdn"`
	IPv4            string     `json:"ipv4,omitempty"`
	Platform        string     `json:"platform,omitempty"`
	PlatformRelease string     `json:"platform_release,omitempty"`
	ApprovalStatus  string     `json:"approval_status"`
	Active          bool       `json:"active"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`
}

// BuildHostReport assembles the fleet inventory report.
func BuildHostReport(ctx context.Context) ([]HostReportRow, error) {
	hosts, err := database.ListHosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]HostReportRow, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, HostReportRow{
			FQDN:            h.FQDN,
			IPv4:            h.IPv4,
			Platform:        h.Platform,
			PlatformRelease: h.PlatformRelease,
			ApprovalStatus:  h.ApprovalStatus,
			Active:          h.Active,
			LastSeen:        h.LastSeen,
		})
	}
	return out, nil
}

// WriteHostReportCSV renders the inventory report as CSV.
func WriteHostReportCSV(w io.Writer, rows []HostReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"fqdn", "ipv4", "platform", "platform_release", "approval_status", "active", "last_seen"}); err != nil {
		return err
	}
	for _, r := range rows {
		lastSeen := ""
		if r.LastSeen != nil {
			lastSeen = r.LastSeen.UTC().Format(time.RFC3339)
		}
		rec := []string{r.FQDN, r.IPv4, r.Platform, r.PlatformRelease,
			r.ApprovalStatus, strconv.FormatBool(r.Active), lastSeen}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildUpdateReport assembles per-host update counts.
func BuildUpdateReport(ctx context.Context) ([]database.UpdateSummary, error) {
	return database.SummarizeUpdates(ctx)
}

// WriteUpdateReportCSV renders the update report as CSV.
func WriteUpdateReportCSV(w io.Writer, rows []database.UpdateSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"fqdn", "total_updates", "security_updates"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.FQDN, strconv.Itoa(r.TotalUpdates), strconv.Itoa(r.SecurityCount)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
