package sequence

import (
	"encoding/json"

	"whatsapp-sequencer/internal/models"
)

// BurstEntry is one message sent as part of a step. VariableValues is nil
// when the entry does not carry its own mapping.
type BurstEntry struct {
	TemplateID     string
	TemplateName   string
	VariableValues models.VariableValues
}

// Values returns the entry's own mapping, or the step's when it has none.
func (e BurstEntry) Values(step *models.SequenceStep) models.VariableValues {
	if e.VariableValues != nil {
		return e.VariableValues
	}
	return step.VariableValues
}

// BurstEntries lists the messages a step sends, in order. Well-formed
// burstTemplates entries (those with a string templateId) win; otherwise the
// step's own template becomes the single entry.
func BurstEntries(step *models.SequenceStep) []BurstEntry {
	if entries := parseBurst(step.BurstTemplates); len(entries) > 0 {
		return entries
	}

	entry := BurstEntry{VariableValues: step.VariableValues}
	if entry.VariableValues == nil {
		entry.VariableValues = models.VariableValues{}
	}
	if step.TemplateID != nil {
		entry.TemplateID = *step.TemplateID
	}
	return []BurstEntry{entry}
}

func parseBurst(raw models.RawJSON) []BurstEntry {
	if len(raw) == 0 {
		return nil
	}
	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	entries := make([]BurstEntry, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := obj["templateId"].(string)
		if !ok {
			continue
		}
		entry := BurstEntry{TemplateID: id}
		if name, ok := obj["templateName"].(string); ok {
			entry.TemplateName = name
		}
		if values, ok := obj["variableValues"].(map[string]interface{}); ok {
			entry.VariableValues = models.VariableValuesFrom(values)
		}
		entries = append(entries, entry)
	}
	return entries
}
