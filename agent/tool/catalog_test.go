package tool

import (
	"reflect"
	"testing"
)

func TestCatalogNamesAndRequiredFields(t *testing.T) {
	t.Parallel()

	want := map[string][]string{
		ToolIdentifyUser:         {"phone_number"},
		ToolFetchSlots:           {},
		ToolBookAppointment:      {"date", "time", "user_name", "phone_number"},
		ToolRetrieveAppointments: {"phone_number"},
		ToolCancelAppointment:    {"appointment_id", "phone_number"},
		ToolModifyAppointment:    {"appointment_id", "phone_number"},
		ToolEndConversation:      {},
	}

	catalog := Catalog()
	if len(catalog) != len(want) {
		t.Fatalf("catalog has %d tools, want %d", len(catalog), len(want))
	}

	seen := map[string]bool{}
	for _, tool := range catalog {
		name := tool.Function.Name
		if seen[name] {
			t.Fatalf("duplicate tool %q", name)
		}
		seen[name] = true

		wantRequired, ok := want[name]
		if !ok {
			t.Fatalf("unexpected tool %q", name)
		}

		required, ok := tool.Function.Parameters["required"].([]string)
		if !ok {
			t.Fatalf("tool %q has no required list", name)
		}
		if !reflect.DeepEqual(required, wantRequired) {
			t.Errorf("tool %q required = %v, want %v", name, required, wantRequired)
		}

		properties, ok := tool.Function.Parameters["properties"].(map[string]any)
		if !ok {
			t.Fatalf("tool %q has no properties object", name)
		}
		for _, field := range wantRequired {
			if _, ok := properties[field]; !ok {
				t.Errorf("tool %q requires %q but does not declare it", name, field)
			}
		}
	}
}
