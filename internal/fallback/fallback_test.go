package fallback

import "testing"

func testResponder() *Responder {
	return New([]Rule{
		{Keywords: []string{"привет", "здравствуй", "hello"}, Reply: "Здравствуйте! Чем могу помочь с выбором электроники?"},
		{Keywords: []string{"телефон", "смартфон"}, Reply: "У нас есть широкий выбор смартфонов."},
		{Keywords: []string{"доставка"}, Reply: "Доставка 1-3 дня по городу."},
	}, "Извините, сервис временно недоступен.")
}

func TestRespondMatchesKeyword(t *testing.T) {
	r := testResponder()

	tests := []struct {
		message string
		want    string
	}{
		{"Привет", "Здравствуйте! Чем могу помочь с выбором электроники?"},
		{"ПРИВЕТ, как дела?", "Здравствуйте! Чем могу помочь с выбором электроники?"},
		{"hello there", "Здравствуйте! Чем могу помочь с выбором электроники?"},
		{"Какой смартфон выбрать?", "У нас есть широкий выбор смартфонов."},
		{"Сколько стоит доставка?", "Доставка 1-3 дня по городу."},
	}

	for _, tt := range tests {
		if got := r.Respond(tt.message); got != tt.want {
			t.Errorf("Respond(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestRespondRuleOrder(t *testing.T) {
	r := testResponder()

	// First matching rule wins when several could apply.
	got := r.Respond("Привет! Какой телефон посоветуете?")
	if got != "Здравствуйте! Чем могу помочь с выбором электроники?" {
		t.Errorf("got %q", got)
	}
}

func TestRespondGeneric(t *testing.T) {
	r := testResponder()

	for _, message := range []string{"Что по холодильникам?", "", "asdf"} {
		got := r.Respond(message)
		if got != "Извините, сервис временно недоступен." {
			t.Errorf("Respond(%q) = %q, want generic", message, got)
		}
		if got == "" {
			t.Errorf("Respond(%q) must never be empty", message)
		}
	}
}

func TestRespondNoRules(t *testing.T) {
	r := New(nil, "запасной ответ")
	if got := r.Respond("что угодно"); got != "запасной ответ" {
		t.Errorf("got %q", got)
	}
}
