package cloud

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lunacloud/stackctl/internal/models"
)

// DiscoverTemplate picks the newest featured template in the zone whose
// name matches the catalog filter. Timestamps compare lexicographically;
// the API emits them in a fixed layout. The provider may list a template
// once per zone copy, so duplicates are dropped by ID.
func (c *Client) DiscoverTemplate(ctx context.Context, zoneID, keyword string, filter *regexp.Regexp) (models.Template, error) {
	result, err := c.api.Execute(ctx,
		"list", "templates",
		"templatefilter=featured",
		"keyword="+keyword,
		"zoneid="+zoneID,
		"filter=id,name,created",
	)
	if err != nil {
		return models.Template{}, fmt.Errorf("failed to list templates: %w", err)
	}

	var templates []models.Template
	if err := result.Decode("template", &templates); err != nil {
		return models.Template{}, err
	}

	seen := map[string]bool{}
	var newest models.Template
	for _, template := range templates {
		if seen[template.ID] || !filter.MatchString(template.Name) {
			continue
		}
		seen[template.ID] = true

		if newest.ID == "" || template.Created > newest.Created {
			newest = template
		}
	}

	if newest.ID == "" {
		return models.Template{}, fmt.Errorf("no featured template matching %s: %w", filter, ErrNotFound)
	}

	return newest, nil
}
