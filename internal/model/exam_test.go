package model

import "testing"

func TestAvailableLanguagesFollowCatalogueOrder(t *testing.T) {
	questions := []Question{
		{ID: "q1", Translations: Translations{"ur": {"": "سوال"}, "hi": {"": "प्रश्न"}}},
		{ID: "q2", Translations: Translations{"xx": {"": "ignored"}}},
	}

	got := AvailableLanguages(questions)
	want := []string{"en", "hi", "ur"}
	if len(got) != len(want) {
		t.Fatalf("languages = %+v", got)
	}
	for i, l := range got {
		if l.Code != want[i] {
			t.Fatalf("languages[%d] = %s, want %s", i, l.Code, want[i])
		}
	}
}

func TestIsRTLCoversCatalogue(t *testing.T) {
	for _, l := range languageCatalogue {
		if got := IsRTL(l.Code); got != (l.Code == "ur") {
			t.Errorf("IsRTL(%s) = %v", l.Code, got)
		}
	}
	if IsRTL("ar") {
		t.Error("IsRTL reports a language outside the catalogue")
	}
}
