package group

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jfenske/recollect/internal/card"
)

func mkCard(text, answer, filePath string) *card.Card {
	return &card.Card{ID: "x", Text: text, Answer: answer, FilePath: filePath}
}

func TestTagClause(t *testing.T) {
	f := ParseFilter("#bio")

	assert.True(t, f.Matches(mkCard("Mitosis #bio", "", "n.md")), "literal tag in text")
	assert.True(t, f.Matches(mkCard("Mitosis", "cell division #bio", "n.md")), "literal tag in answer")
	assert.True(t, f.Matches(mkCard("Krebs cycle #biology", "", "n.md")), "extracted tag containing the token")
	assert.True(t, f.Matches(mkCard("DNA #BIO", "", "n.md")), "case insensitive")
	assert.False(t, f.Matches(mkCard("Algebra", "polynomials", "n.md")))
	assert.False(t, f.Matches(mkCard("biology without hash", "", "n.md")),
		"bare word is not a tag")
}

func TestLinkClause(t *testing.T) {
	f := ParseFilter("[[physics]]")

	assert.True(t, f.Matches(mkCard("t", "a", "notes/Physics Notes.md")))
	assert.True(t, f.Matches(mkCard("t", "a", "physics.md")))
	assert.False(t, f.Matches(mkCard("physics in text only", "a", "chem.md")),
		"links match the file path, not content")
}

func TestWildcardClause(t *testing.T) {
	f := ParseFilter("books/*.md")

	assert.True(t, f.Matches(mkCard("t", "a", "books/dune.md")))
	assert.True(t, f.Matches(mkCard("t", "a", "Books/Dune.MD")), "case insensitive")
	assert.False(t, f.Matches(mkCard("t", "a", "articles/dune.md")))
}

func TestWildcardEscapesRegexpMeta(t *testing.T) {
	f := ParseFilter("notes/ch.1*")

	assert.True(t, f.Matches(mkCard("t", "a", "notes/ch.1-intro.md")))
	assert.False(t, f.Matches(mkCard("t", "a", "notes/chX1-intro.md")),
		"dot must match literally")
}

func TestSubstringClause(t *testing.T) {
	f := ParseFilter("dune")

	assert.True(t, f.Matches(mkCard("t", "a", "books/dune.md")), "file path first")
	assert.True(t, f.Matches(mkCard("the spice of Dune", "a", "other.md")), "falls back to text")
	assert.True(t, f.Matches(mkCard("t", "Dune by Herbert", "other.md")), "falls back to answer")
	assert.False(t, f.Matches(mkCard("t", "a", "other.md")))
}

func TestClausesAreORed(t *testing.T) {
	f := ParseFilter("#bio, [[physics]], chem")

	assert.True(t, f.Matches(mkCard("cells #bio", "", "misc.md")))
	assert.True(t, f.Matches(mkCard("t", "a", "physics/waves.md")))
	assert.True(t, f.Matches(mkCard("t", "a", "chemistry.md")))
	assert.False(t, f.Matches(mkCard("t", "a", "history.md")))
}

func TestEmptyFilterMatchesNothing(t *testing.T) {
	for _, expr := range []string{"", " ", ",", " , "} {
		f := ParseFilter(expr)
		assert.True(t, f.Empty(), "expr %q", expr)
		assert.False(t, f.Matches(mkCard("t", "a", "f.md")), "expr %q", expr)
	}
}

func TestClauseTrimmingAndLowercasing(t *testing.T) {
	f := ParseFilter("  #Bio ,  [[Physics]] ")

	assert.True(t, f.Matches(mkCard("cells #bio", "", "misc.md")))
	assert.True(t, f.Matches(mkCard("t", "a", "physics.md")))
}
