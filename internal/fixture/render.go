package fixture

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"unicode"
)

var testTemplate = template.Must(template.New("test").Parse(`package {{.Package}}

import (
	"context"
	"testing"

	service "github.com/okian/dealsync/internal/app"
	"github.com/okian/dealsync/internal/fixture"
	. "github.com/smartystreets/goconvey/convey"
)

// Test{{.Name}} replays group {{.TestID}}.
func Test{{.Name}}(t *testing.T) {
	Convey("Given the {{.Name}} fixture", t, func() {
		f, err := fixture.LoadFile("{{.Path}}")
		So(err, ShouldBeNil)
		arena, set, err := f.Build()
		So(err, ShouldBeNil)

		Convey("When the group is planned", func() {
			plan, err := service.New().GenerateForGroup(context.Background(), arena, set)
			So(err, ShouldBeNil)

			Convey("Then events and actions match the recording", func() {
				So(fixture.Events(arena, plan.Events), ShouldResemble, f.Events)
				So(fixture.Actions(plan.Actions), ShouldResemble, f.Actions)
			})
		})
	})
}
`))

// TestFile describes the Go test rendered for a fixture.
type TestFile struct {
	Package string
	Name    string
	Path    string
	TestID  string
}

// RenderTest writes a GoConvey test that replays the fixture stored at
// tf.Path.
func RenderTest(w io.Writer, tf TestFile) error {
	if tf.Package == "" {
		tf.Package = "fixture_test"
	}
	tf.Name = TestName(tf.Name)
	if err := testTemplate.Execute(w, tf); err != nil {
		return fmt.Errorf("render test: %w", err)
	}
	return nil
}

// TestName turns a free-form label into an exported Go identifier suffix.
func TestName(label string) string {
	var b strings.Builder
	upper := true
	for _, r := range label {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "Group"
	}
	return b.String()
}
