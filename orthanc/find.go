package orthanc

import (
	"github.com/tjni/orthanc-connector-go/orthanc/models"
)

const findURL = "/tools/find"

// Query describes a /tools/find request. Query maps DICOM tag names to
// match strings ("*" wildcards allowed); an empty map matches everything.
type Query struct {
	Level            string
	Query            map[string]string
	CaseSensitive    bool
	Limit            int
	Since            int
	Labels           []string
	LabelsConstraint string // "All", "Any" or "None"
}

func (q Query) payload(expand bool) map[string]interface{} {
	query := q.Query
	if query == nil {
		query = map[string]string{}
	}
	payload := map[string]interface{}{
		"Level":         q.Level,
		"Query":         query,
		"Expand":        expand,
		"CaseSensitive": q.CaseSensitive,
	}
	if q.Limit > 0 {
		payload["Limit"] = q.Limit
	}
	if q.Since > 0 {
		payload["Since"] = q.Since
	}
	if len(q.Labels) > 0 {
		payload["Labels"] = q.Labels
		if q.LabelsConstraint != "" {
			payload["LabelsConstraint"] = q.LabelsConstraint
		}
	}
	return payload
}

// FindIdentifiers runs the query and returns the matching Orthanc
// identifiers without fetching the resources.
func (o *Orthanc) FindIdentifiers(query Query) ([]string, error) {
	var ids []string
	err := o.Client.PostJSONAndParse(findURL, query.payload(false), &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindPatients runs a patient-level query and returns the matches with
// their main information loaded.
func (o *Orthanc) FindPatients(query Query) ([]models.Patient, error) {
	query.Level = models.QueryLevelPatient
	var patients []models.Patient
	err := o.Client.PostJSONAndParse(findURL, query.payload(true), &patients)
	if err != nil {
		return nil, err
	}
	return patients, nil
}

// FindStudies runs a study-level query.
func (o *Orthanc) FindStudies(query Query) ([]models.Study, error) {
	query.Level = models.QueryLevelStudy
	var studies []models.Study
	err := o.Client.PostJSONAndParse(findURL, query.payload(true), &studies)
	if err != nil {
		return nil, err
	}
	return studies, nil
}

// FindSeries runs a series-level query.
func (o *Orthanc) FindSeries(query Query) ([]models.Series, error) {
	query.Level = models.QueryLevelSeries
	var series []models.Series
	err := o.Client.PostJSONAndParse(findURL, query.payload(true), &series)
	if err != nil {
		return nil, err
	}
	return series, nil
}

// FindInstances runs an instance-level query.
func (o *Orthanc) FindInstances(query Query) ([]models.Instance, error) {
	query.Level = models.QueryLevelInstance
	var instances []models.Instance
	err := o.Client.PostJSONAndParse(findURL, query.payload(true), &instances)
	if err != nil {
		return nil, err
	}
	return instances, nil
}
