package validate

import (
	"encoding/json"
	"fmt"
	"time"

	"flowport/backend/internal/bundle"
	"flowport/backend/pkg/models"
)

// Schema checks a header-validated bundle document for full structural
// conformance with the published bundle shape. Every violation found is
// reported with a path locating it; the walk is read-only and never stops at
// the first problem.
func Schema(doc interface{}) error {
	c := &checker{}

	root, ok := c.object(doc, "$")
	if !ok {
		return c.result()
	}

	c.string(root, "$", "format")
	c.integer(root, "$", "formatVersion")
	if ts, ok := c.string(root, "$", "exportedAt"); ok {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			c.add("$.exportedAt", "must be an RFC 3339 timestamp")
		}
	}

	workflows, ok := c.array(root, "$", "workflows")
	if !ok {
		return c.result()
	}

	seen := map[string]int{}
	for i, entry := range workflows {
		path := fmt.Sprintf("workflows[%d]", i)
		wf, ok := c.object(entry, path)
		if !ok {
			continue
		}
		if key, ok := c.string(wf, path, "key"); ok {
			if !bundle.ValidKey(key) {
				c.add(path+".key", fmt.Sprintf("%q does not match the portable key pattern", key))
			} else if prev, dup := seen[key]; dup {
				c.add(path+".key", fmt.Sprintf("duplicate key %q, already used by workflows[%d]", key, prev))
			} else {
				seen[key] = i
			}
		}
		c.checkMetadata(wf, path)
		c.checkOperationalSettings(wf, path)
		if _, ok := wf["draft"]; !ok {
			c.add(path+".draft", "required field is missing")
		} else {
			c.object(wf["draft"], path+".draft")
		}
		c.checkVersions(wf, path)
		c.checkDependencies(wf, path)
	}

	return c.result()
}

type checker struct {
	violations []Violation
}

func (c *checker) result() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &SchemaValidationError{Violations: c.violations}
}

func (c *checker) add(path, msg string) {
	c.violations = append(c.violations, Violation{Path: path, Message: msg})
}

func (c *checker) checkMetadata(wf map[string]interface{}, path string) {
	raw, ok := wf["metadata"]
	if !ok {
		c.add(path+".metadata", "required field is missing")
		return
	}
	meta, ok := c.object(raw, path+".metadata")
	if !ok {
		return
	}
	if name, ok := c.string(meta, path+".metadata", "name"); ok && name == "" {
		c.add(path+".metadata.name", "must not be empty")
	}
	if desc, ok := meta["description"]; ok {
		if _, isStr := desc.(string); !isStr {
			c.add(path+".metadata.description", "must be a string")
		}
	}
}

func (c *checker) checkOperationalSettings(wf map[string]interface{}, path string) {
	raw, ok := wf["operationalSettings"]
	if !ok {
		c.add(path+".operationalSettings", "required field is missing")
		return
	}
	base := path + ".operationalSettings"
	settings, ok := c.object(raw, base)
	if !ok {
		return
	}
	c.boolean(settings, base, "isPaused")
	c.boolean(settings, base, "isVisible")
	if n, ok := c.integer(settings, base, "concurrency"); ok && n < 0 {
		c.add(base+".concurrency", "must not be negative")
	}
	c.checkRetention(settings, base)
	c.checkAutoPause(settings, base)
}

func (c *checker) checkRetention(settings map[string]interface{}, base string) {
	raw, ok := settings["retention"]
	if !ok {
		c.add(base+".retention", "required field is missing")
		return
	}
	retention, ok := c.object(raw, base+".retention")
	if !ok {
		return
	}
	mode, ok := c.string(retention, base+".retention", "mode")
	if !ok {
		return
	}
	switch models.RetentionMode(mode) {
	case models.RetentionForever:
	case models.RetentionDays:
		if days, ok := c.integer(retention, base+".retention", "days"); ok && days < 1 {
			c.add(base+".retention.days", "must be a positive integer")
		}
	default:
		c.add(base+".retention.mode", fmt.Sprintf("%q is not one of [forever days]", mode))
	}
}

func (c *checker) checkAutoPause(settings map[string]interface{}, base string) {
	raw, ok := settings["autoPauseThresholds"]
	if !ok {
		return // optional
	}
	thresholds, ok := c.object(raw, base+".autoPauseThresholds")
	if !ok {
		return
	}
	if rate, ok := thresholds["errorRate"]; ok {
		num, isNum := rate.(json.Number)
		if !isNum {
			c.add(base+".autoPauseThresholds.errorRate", "must be a number")
		} else if f, err := num.Float64(); err != nil || f < 0 || f > 1 {
			c.add(base+".autoPauseThresholds.errorRate", "must be between 0 and 1")
		}
	}
	if _, ok := thresholds["consecutiveFailures"]; ok {
		if n, ok := c.integer(thresholds, base+".autoPauseThresholds", "consecutiveFailures"); ok && n < 1 {
			c.add(base+".autoPauseThresholds.consecutiveFailures", "must be a positive integer")
		}
	}
}

func (c *checker) checkVersions(wf map[string]interface{}, path string) {
	versions, ok := c.array(wf, path, "versions")
	if !ok {
		return
	}
	for j, entry := range versions {
		vpath := fmt.Sprintf("%s.versions[%d]", path, j)
		v, ok := c.object(entry, vpath)
		if !ok {
			continue
		}
		if n, ok := c.integer(v, vpath, "version"); ok && n < 1 {
			c.add(vpath+".version", "must be a positive integer")
		}
		c.string(v, vpath, "name")
		if _, ok := v["content"]; !ok {
			c.add(vpath+".content", "required field is missing")
		} else {
			c.object(v["content"], vpath+".content")
		}
	}
}

func (c *checker) checkDependencies(wf map[string]interface{}, path string) {
	raw, ok := wf["dependencies"]
	if !ok {
		c.add(path+".dependencies", "required field is missing")
		return
	}
	base := path + ".dependencies"
	deps, ok := c.object(raw, base)
	if !ok {
		return
	}
	for _, field := range []string{"actions", "nodeTypes", "schemaRefs"} {
		names, ok := c.array(deps, base, field)
		if !ok {
			continue
		}
		for k, name := range names {
			if _, isStr := name.(string); !isStr {
				c.add(fmt.Sprintf("%s.%s[%d]", base, field, k), "must be a string")
			}
		}
	}
}

// Typed field accessors. Each records a violation and reports !ok when the
// field is missing or of the wrong type.

func (c *checker) object(v interface{}, path string) (map[string]interface{}, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		c.add(path, "must be an object")
		return nil, false
	}
	return obj, true
}

func (c *checker) string(obj map[string]interface{}, base, field string) (string, bool) {
	raw, ok := obj[field]
	if !ok {
		c.add(base+"."+field, "required field is missing")
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		c.add(base+"."+field, "must be a string")
		return "", false
	}
	return s, true
}

func (c *checker) boolean(obj map[string]interface{}, base, field string) (bool, bool) {
	raw, ok := obj[field]
	if !ok {
		c.add(base+"."+field, "required field is missing")
		return false, false
	}
	b, ok := raw.(bool)
	if !ok {
		c.add(base+"."+field, "must be a boolean")
		return false, false
	}
	return b, true
}

func (c *checker) integer(obj map[string]interface{}, base, field string) (int64, bool) {
	raw, ok := obj[field]
	if !ok {
		c.add(base+"."+field, "required field is missing")
		return 0, false
	}
	num, ok := raw.(json.Number)
	if !ok {
		c.add(base+"."+field, "must be an integer")
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		c.add(base+"."+field, "must be an integer")
		return 0, false
	}
	return n, true
}

func (c *checker) array(obj map[string]interface{}, base, field string) ([]interface{}, bool) {
	raw, ok := obj[field]
	if !ok {
		c.add(base+"."+field, "required field is missing")
		return nil, false
	}
	arr, ok := raw.([]interface{})
	if !ok {
		c.add(base+"."+field, "must be an array")
		return nil, false
	}
	return arr, true
}
