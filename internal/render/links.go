package render

import (
	"fmt"
	"strconv"

	"go-laue-run-monitor/internal/model"
)

func ScanURL(scanNumber int64) string {
	return "/scan?scan_id=" + strconv.FormatInt(scanNumber, 10)
}

func JobURL(jobID int64) string {
	return "/job?job_id=" + strconv.FormatInt(jobID, 10)
}

func ReconURL(reconID int64) string {
	return "/reconstruction?recon_id=" + strconv.FormatInt(reconID, 10)
}

func WireReconURL(wireReconID int64) string {
	return "/wire_reconstruction?wirerecon_id=" + strconv.FormatInt(wireReconID, 10)
}

func PeakIndexURL(peakIndexID int64) string {
	return "/peakindexing?peakindex_id=" + strconv.FormatInt(peakIndexID, 10)
}

// Link is an anchor; an empty Href renders as plain text.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

// IDLink renders the identifier cell: job rows link to the job page, subjob rows show
// their own id as plain text.
func IDLink(row model.Row) Link {
	switch r := row.(type) {
	case *model.JobRow:
		if r == nil {
			return Link{}
		}
		return Link{Text: strconv.FormatInt(r.JobID, 10), Href: JobURL(r.JobID)}
	case *model.SubJobRow:
		if r == nil {
			return Link{}
		}
		return Link{Text: strconv.FormatInt(r.SubJobID, 10)}
	}
	return Link{}
}

// Ref is one "Table: id" cross reference of a job.
type Ref struct {
	Table Link `json:"table"`
	ID    Link `json:"id"`
}

// JobRefs lists the calibration, reconstruction and indexing records a job produced,
// in that fixed order. Calibrations have no list or detail page.
func JobRefs(job *model.JobRow) []Ref {
	if job == nil {
		return nil
	}
	var refs []Ref
	if job.CalibID != nil {
		refs = append(refs, Ref{
			Table: Link{Text: "Calib"},
			ID:    Link{Text: strconv.FormatInt(*job.CalibID, 10)},
		})
	}
	if job.ReconID != nil {
		refs = append(refs, Ref{
			Table: Link{Text: "Recon", Href: "/reconstructions"},
			ID:    Link{Text: strconv.FormatInt(*job.ReconID, 10), Href: ReconURL(*job.ReconID)},
		})
	}
	if job.WireReconID != nil {
		refs = append(refs, Ref{
			Table: Link{Text: "WireRecon", Href: "/wire-reconstructions"},
			ID:    Link{Text: strconv.FormatInt(*job.WireReconID, 10), Href: WireReconURL(*job.WireReconID)},
		})
	}
	if job.PeakIndexID != nil {
		refs = append(refs, Ref{
			Table: Link{Text: "Peak Indexing", Href: "/peakindexings"},
			ID:    Link{Text: strconv.FormatInt(*job.PeakIndexID, 10), Href: PeakIndexURL(*job.PeakIndexID)},
		})
	}
	return refs
}

// RelatedLink renders a related entity of the job detail page.
func RelatedLink(e model.RelatedEntity) Link {
	text := fmt.Sprintf("%s ID %d", e.Kind, e.ID)
	switch e.Kind {
	case "Calibration":
		return Link{Text: text, Href: "/calibration?id=" + strconv.FormatInt(e.ID, 10)}
	case "Reconstruction":
		return Link{Text: text, Href: ReconURL(e.ID)}
	case "Wire Reconstruction":
		return Link{Text: text, Href: WireReconURL(e.ID)}
	case "Peak Index":
		return Link{Text: text, Href: PeakIndexURL(e.ID)}
	}
	return Link{Text: text}
}
