package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelutten/studymaster-pwa-sub001/internal/apkg"
)

func basicRawModel() apkg.RawModel {
	return apkg.RawModel{
		ID:   100,
		Name: "Basic",
		Fields: []apkg.RawField{
			{Name: "Front", Ordinal: 0},
			{Name: "Back", Ordinal: 1},
		},
		Templates: []apkg.RawTemplate{
			{Name: "Card 1", Ordinal: 0, Question: "{{Front}}", Answer: "{{FrontSide}}<hr>{{Back}}"},
		},
		Stylesheet: ".card { font-family: arial; }",
	}
}

func TestTransformModel(t *testing.T) {
	t.Run("carries structure through", func(t *testing.T) {
		model, securityIssues := TransformModel(basicRawModel())
		assert.Zero(t, securityIssues)

		assert.Equal(t, int64(100), model.ID)
		assert.Equal(t, "Basic", model.Name)
		assert.Equal(t, []string{"Front", "Back"}, model.Fields)
		require.Len(t, model.Templates, 1)
		assert.Equal(t, "Card 1", model.Templates[0].Name)
		assert.Equal(t, "{{Front}}", model.Templates[0].Question)
		assert.Equal(t, ".card { font-family: arial; }", model.Stylesheet)
		assert.True(t, model.Sanitized)
		assert.NotEmpty(t, model.ContentHash)
	})

	t.Run("sanitizes templates and stylesheet", func(t *testing.T) {
		raw := basicRawModel()
		raw.Templates[0].Question = `{{Front}}<script>steal()</script>`
		raw.Templates[0].Answer = `<img src="x.png" onerror="pwn()">{{Back}}`
		raw.Stylesheet = `.card { } @import url("https://evil.example/a.css");`

		model, securityIssues := TransformModel(raw)

		assert.Equal(t, "{{Front}}", model.Templates[0].Question)
		assert.Equal(t, `<img src="x.png">{{Back}}`, model.Templates[0].Answer)
		assert.NotContains(t, model.Stylesheet, "@import")
		// Question, answer, and stylesheet were each modified.
		assert.Equal(t, 3, securityIssues)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		raw := basicRawModel()
		raw.Templates[0].Question = `{{Front}}<script>x</script>`

		_, _ = TransformModel(raw)

		assert.Equal(t, `{{Front}}<script>x</script>`, raw.Templates[0].Question)
	})
}

func TestContentHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := contentHash(basicRawModel())
		b := contentHash(basicRawModel())
		assert.Equal(t, a, b)
		assert.Len(t, a, 16)
	})

	t.Run("sensitive to template changes", func(t *testing.T) {
		base := contentHash(basicRawModel())

		changed := basicRawModel()
		changed.Templates[0].Question = "{{Back}}"
		assert.NotEqual(t, base, contentHash(changed))
	})

	t.Run("sensitive to field changes", func(t *testing.T) {
		base := contentHash(basicRawModel())

		changed := basicRawModel()
		changed.Fields[1].Name = "Reverse"
		assert.NotEqual(t, base, contentHash(changed))
	})

	t.Run("sensitive to stylesheet changes", func(t *testing.T) {
		base := contentHash(basicRawModel())

		changed := basicRawModel()
		changed.Stylesheet = ".card { color: red; }"
		assert.NotEqual(t, base, contentHash(changed))
	})

	t.Run("ignores model name", func(t *testing.T) {
		base := contentHash(basicRawModel())

		renamed := basicRawModel()
		renamed.Name = "Renamed"
		assert.Equal(t, base, contentHash(renamed))
	})
}

func TestScanMediaRefs(t *testing.T) {
	raw := basicRawModel()
	raw.Templates[0].Question = `<img src="front.png">{{Front}}[sound:audio.mp3]`
	raw.Templates[0].Answer = `<img src='front.png'><img src="https://cdn.example/remote.png">`
	raw.Stylesheet = `.card { background: url("bg.jpg"); }`

	model, _ := TransformModel(raw)

	// De-duplicated, sorted, remote references excluded.
	assert.Equal(t, []string{"audio.mp3", "bg.jpg", "front.png"}, model.MediaRefs)
}

func TestScanMediaRefs_Empty(t *testing.T) {
	model, _ := TransformModel(basicRawModel())
	assert.Nil(t, model.MediaRefs)
}
