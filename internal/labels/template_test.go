package labels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const badgeLayout = `<Label width="62" height="29">
  <Text x="2" y="4" fontSize="10">%%%FullName%%%</Text>
  <Text x="2" y="12" fontSize="6">%%% Role %%%</Text>
  <QRCode x="40" y="4" width="20" height="20">%%%Badge%%%</QRCode>
  <Rect x="0" y="0" width="62" height="29"/>
</Label>`

func TestParse(t *testing.T) {
	tpl, err := Parse(badgeLayout)
	require.NoError(t, err)
	require.Equal(t, 62.0, tpl.Width)
	require.Equal(t, 29.0, tpl.Height)
	require.Len(t, tpl.Elements, 4)
}

func TestParseRejectsUnknownElement(t *testing.T) {
	_, err := Parse(`<Label width="62" height="29"><Circle x="1" y="1"/></Label>`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown element")
}

func TestParseRejectsEmptyTemplate(t *testing.T) {
	_, err := Parse(`<Label width="62" height="29"></Label>`)
	require.ErrorIs(t, err, ErrEmptyTemplate)
}

func TestParseRejectsBadRotation(t *testing.T) {
	_, err := Parse(`<Label width="62" height="29"><Text x="1" y="1" rotation="45">hi</Text></Label>`)
	require.ErrorIs(t, err, ErrBadRotation)

	tpl, err := Parse(`<Label width="62" height="29"><Text x="1" y="1" rotation="270">hi</Text></Label>`)
	require.NoError(t, err)
	require.Equal(t, 270, tpl.Elements[0].Rotation)
}

func TestSubstitute(t *testing.T) {
	values := map[string]string{"FullName": "Jan Moser", "Role": "EMPLOYEE"}

	resolved, missing := Substitute("%%%FullName%%% (%%% Role %%%)", values)
	require.Equal(t, "Jan Moser (EMPLOYEE)", resolved)
	require.Empty(t, missing)

	resolved, missing = Substitute("%%%FullName%%% %%%Department%%%", values)
	require.Equal(t, "Jan Moser ", resolved)
	require.Equal(t, []string{"Department"}, missing)
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders(badgeLayout)
	require.Equal(t, []string{"FullName", "Role", "Badge"}, names)
}

func TestRender(t *testing.T) {
	tpl, err := Parse(badgeLayout)
	require.NoError(t, err)

	commands, err := tpl.Render(map[string]string{
		"FullName": "Jan Moser",
		"Role":     "EMPLOYEE",
		"Badge":    "Alptraum7Technologies",
	})
	require.NoError(t, err)
	require.Len(t, commands, 4)

	require.Equal(t, KindText, commands[0].Kind)
	require.Equal(t, "Jan Moser", commands[0].Content)
	require.Equal(t, "EMPLOYEE", commands[1].Content)
	require.Equal(t, KindQRCode, commands[2].Kind)
	require.Equal(t, "Alptraum7Technologies", commands[2].Content)
	require.Equal(t, KindRect, commands[3].Kind)
}

func TestRenderTable(t *testing.T) {
	layout := `<Label width="62" height="29">
  <Table x="2" y="2" width="58" height="25">
    <Row><Cell>Item</Cell><Cell>%%%ItemID%%%</Cell></Row>
    <Row><Cell>Location</Cell><Cell>%%%Location%%%</Cell></Row>
  </Table>
</Label>`

	tpl, err := Parse(layout)
	require.NoError(t, err)

	commands, err := tpl.Render(map[string]string{"ItemID": "EL-RES-100R", "Location": "Shelf A"})
	require.NoError(t, err)
	require.Len(t, commands, 1)
	require.Equal(t, KindTable, commands[0].Kind)
	require.Equal(t, [][]string{
		{"Item", "EL-RES-100R"},
		{"Location", "Shelf A"},
	}, commands[0].Table)
}
