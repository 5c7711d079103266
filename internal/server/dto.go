package server

import (
	"jornada/internal/domain"
	"jornada/internal/engine"
	"jornada/internal/report"
)

type DateRequest struct {
	Date string `json:"date,omitempty" format:"date" example:"2024-03-04"`
}

// ClassificationRequest carries the axis selections positionally: index
// i addresses the department's axis i, catalog id or free text.
type ClassificationRequest struct {
	Nodes []int64  `json:"nodes,omitempty"`
	AdHoc []string `json:"ad_hoc,omitempty"`
}

func (r ClassificationRequest) toDomain() (domain.Classification, bool) {
	var class domain.Classification
	if len(r.Nodes) > domain.MaxAxes || len(r.AdHoc) > domain.MaxAxes {
		return class, false
	}
	copy(class.NodeIDs[:], r.Nodes)
	copy(class.AdHoc[:], r.AdHoc)
	return class, true
}

type CreateActivityRequest struct {
	Date           string                `json:"date,omitempty" format:"date"`
	ProjectID      int64                 `json:"project_id,omitempty"`
	Classification ClassificationRequest `json:"classification,omitempty"`
	Description    string                `json:"description,omitempty"`
}

type DepartmentResponse struct {
	Namespace string   `json:"namespace"`
	Slug      string   `json:"slug"`
	Label     string   `json:"label"`
	Axes      []string `json:"axes"`
}

type WorkdayResponse struct {
	Workday domain.Workday `json:"workday"`
}

type ActivityResponse struct {
	Activity engine.ActivityStatus `json:"activity"`
}

type CatalogResponse struct {
	Nodes []domain.CatalogNode `json:"nodes"`
}

type ProjectsResponse struct {
	Projects []domain.Project `json:"projects"`
}

type CollaboratorsResponse struct {
	Collaborators []domain.Collaborator `json:"collaborators"`
}

// ReportQuery are the shared report filter parameters. The node
// parameters are positional against the department's axes.
type ReportQuery struct {
	From       string  `query:"from" format:"date"`
	To         string  `query:"to" format:"date"`
	Order      string  `query:"order" enum:"-hours,hours,name,project" default:"-hours"`
	ProjectIDs []int64 `query:"project_id"`
	Node0      []int64 `query:"node0"`
	Node1      []int64 `query:"node1"`
	Node2      []int64 `query:"node2"`
}

func (q ReportQuery) options() report.Options {
	opts := report.Options{
		From:       q.From,
		To:         q.To,
		Order:      q.Order,
		ProjectIDs: q.ProjectIDs,
	}
	opts.NodeIDs[0] = q.Node0
	opts.NodeIDs[1] = q.Node1
	opts.NodeIDs[2] = q.Node2
	return opts
}
