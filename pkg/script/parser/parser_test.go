package parser_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapscript/pkg/script"
	"github.com/leapstack-labs/leapscript/pkg/script/parser"
)

// ---------- Helpers ----------

func parse(t *testing.T, src string) *script.Tree {
	t.Helper()
	tree, err := parser.Parse(src)
	require.NoError(t, err)
	require.NotNil(t, tree)
	return tree
}

func root(t *testing.T, tree *script.Tree) *script.Block {
	t.Helper()
	blk, ok := tree.Node(tree.Root).(*script.Block)
	require.True(t, ok, "root should be a block")
	return blk
}

// only returns the single statement of the root block.
func only(t *testing.T, tree *script.Tree) script.Node {
	t.Helper()
	blk := root(t, tree)
	require.Len(t, blk.Body, 1)
	return tree.Node(blk.Body[0])
}

func leafOf(t *testing.T, tree *script.Tree, id script.NodeID) *script.Statement {
	t.Helper()
	leaf, ok := tree.Node(id).(*script.Leaf)
	require.True(t, ok, "node %d should be a leaf", id)
	return leaf.Stmt
}

func bodyOf(t *testing.T, tree *script.Tree, id script.NodeID) *script.Block {
	t.Helper()
	blk, ok := tree.Node(id).(*script.Block)
	require.True(t, ok, "node %d should be a block", id)
	return blk
}

// ---------- Structure ----------

func TestParse_StatementList(t *testing.T) {
	tree := parse(t, "SELECT 1;\nSELECT 2")
	blk := root(t, tree)

	assert.False(t, blk.Implicit)
	require.Len(t, blk.Body, 2)
	assert.Equal(t, "SELECT 1", leafOf(t, tree, blk.Body[0]).Text)
	assert.Equal(t, "SELECT 2", leafOf(t, tree, blk.Body[1]).Text)
	assert.Equal(t, script.StmtQuery, leafOf(t, tree, blk.Body[1]).Kind)
	assert.Equal(t, 2, leafOf(t, tree, blk.Body[1]).Pos.Line)
	assert.Equal(t, "SELECT 1;\nSELECT 2", tree.Source)
}

func TestParse_CompoundIsRoot(t *testing.T) {
	tree := parse(t, "outer: BEGIN SELECT 1; BEGIN SELECT 2; END; END outer;")
	blk := root(t, tree)

	assert.Equal(t, "outer", blk.Label)
	require.Len(t, blk.Body, 2)
	inner := bodyOf(t, tree, blk.Body[1])
	assert.Empty(t, inner.Label)
	assert.False(t, inner.Implicit)
	require.Len(t, inner.Body, 1)
}

func TestParse_If(t *testing.T) {
	tree := parse(t, `IF x > 1 THEN
  SELECT 1;
ELSEIF x = 0 THEN
  SELECT 2;
  SELECT 3;
ELSE
  SELECT 4;
END IF;`)

	n, ok := only(t, tree).(*script.Conditional)
	require.True(t, ok)
	assert.False(t, n.Simple)
	require.Len(t, n.Branches, 2)
	assert.Equal(t, "x > 1", n.Branches[0].Cond.Text)
	assert.Equal(t, "x = 0", n.Branches[1].Cond.Text)

	first := bodyOf(t, tree, n.Branches[0].Body)
	assert.True(t, first.Implicit)
	assert.Len(t, first.Body, 1)
	assert.Len(t, bodyOf(t, tree, n.Branches[1].Body).Body, 2)

	require.NotEqual(t, script.NoNode, n.Else)
	elseBody := bodyOf(t, tree, n.Else)
	assert.Equal(t, "SELECT 4", leafOf(t, tree, elseBody.Body[0]).Text)
}

func TestParse_IfWithoutElse(t *testing.T) {
	tree := parse(t, "IF flag THEN SELECT 1; END IF;")
	n, ok := only(t, tree).(*script.Conditional)
	require.True(t, ok)
	assert.Equal(t, script.NoNode, n.Else)
}

func TestParse_Case(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		tree := parse(t, "CASE x WHEN 1 THEN SELECT 'a'; WHEN 2 THEN SELECT 'b'; ELSE SELECT 'c'; END CASE;")
		n, ok := only(t, tree).(*script.Conditional)
		require.True(t, ok)
		assert.True(t, n.Simple)
		assert.Equal(t, "x", n.Scrutinee.Text)
		require.Len(t, n.Branches, 2)
		assert.Equal(t, "1", n.Branches[0].Cond.Text)
		assert.Equal(t, "2", n.Branches[1].Cond.Text)
		assert.NotEqual(t, script.NoNode, n.Else)
	})

	t.Run("searched with case expression", func(t *testing.T) {
		tree := parse(t, "CASE WHEN CASE WHEN a THEN 1 END = 1 THEN SELECT 1; END CASE;")
		n, ok := only(t, tree).(*script.Conditional)
		require.True(t, ok)
		assert.False(t, n.Simple)
		require.Len(t, n.Branches, 1)
		assert.Equal(t, "CASE WHEN a THEN 1 END = 1", n.Branches[0].Cond.Text)
		assert.Equal(t, script.NoNode, n.Else)
	})
}

func TestParse_Loops(t *testing.T) {
	t.Run("while", func(t *testing.T) {
		tree := parse(t, "lp: WHILE i < (SELECT max(n) FROM t) DO SET i = i + 1; END WHILE lp;")
		n, ok := only(t, tree).(*script.While)
		require.True(t, ok)
		assert.Equal(t, "lp", n.Label)
		assert.Equal(t, "i < (SELECT max(n) FROM t)", n.Cond.Text)

		body := bodyOf(t, tree, n.Body)
		require.Len(t, body.Body, 1)
		stmt := leafOf(t, tree, body.Body[0])
		assert.Equal(t, script.StmtSet, stmt.Kind)
		assert.Equal(t, []string{"i"}, stmt.Set.Names)
		assert.Equal(t, "i + 1", stmt.Set.Value.Text)
	})

	t.Run("repeat", func(t *testing.T) {
		tree := parse(t, "REPEAT SELECT 1; UNTIL done END REPEAT;")
		n, ok := only(t, tree).(*script.Repeat)
		require.True(t, ok)
		assert.Empty(t, n.Label)
		assert.Equal(t, "done", n.Until.Text)
	})

	t.Run("loop with leave", func(t *testing.T) {
		tree := parse(t, "l: LOOP LEAVE l; END LOOP l;")
		n, ok := only(t, tree).(*script.Loop)
		require.True(t, ok)
		body := bodyOf(t, tree, n.Body)
		require.Len(t, body.Body, 1)
		leave, ok := tree.Node(body.Body[0]).(*script.Leave)
		require.True(t, ok)
		assert.Equal(t, "l", leave.Label)
	})

	t.Run("for with variable", func(t *testing.T) {
		tree := parse(t, "FOR r AS SELECT id FROM t DO SELECT r.id; END FOR;")
		n, ok := only(t, tree).(*script.For)
		require.True(t, ok)
		assert.Equal(t, "r", n.Var)
		require.NotNil(t, n.Query)
		assert.Equal(t, "SELECT id FROM t", n.Query.Text)
	})

	t.Run("for without variable", func(t *testing.T) {
		tree := parse(t, "f: FOR SELECT 1 AS a DO ITERATE f; END FOR f;")
		n, ok := only(t, tree).(*script.For)
		require.True(t, ok)
		assert.Empty(t, n.Var)
		assert.Equal(t, "f", n.Label)
		assert.Equal(t, "SELECT 1 AS a", n.Query.Text)
	})
}

// ---------- Declarations ----------

func TestParse_DeclareVariable(t *testing.T) {
	tests := []struct {
		name        string
		src         string
		wantNames   []string
		wantType    string
		wantDefault string
		wantReplace bool
	}{
		{
			name:        "full form",
			src:         "DECLARE OR REPLACE VARIABLE a, b INT DEFAULT 5;",
			wantNames:   []string{"a", "b"},
			wantType:    "INT",
			wantDefault: "5",
			wantReplace: true,
		},
		{
			name:        "assignment default",
			src:         "DECLARE x = 1;",
			wantNames:   []string{"x"},
			wantDefault: "1",
		},
		{
			name:      "parameterized type",
			src:       "DECLARE VAR total DECIMAL(10, 2);",
			wantNames: []string{"total"},
			wantType:  "DECIMAL(10, 2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.src)
			blk := root(t, tree)
			require.Len(t, blk.Body, 1)
			stmt := leafOf(t, tree, blk.Body[0])

			assert.Equal(t, script.StmtDeclare, stmt.Kind)
			require.NotNil(t, stmt.Declare)
			assert.Equal(t, tt.wantNames, stmt.Declare.Names)
			assert.Equal(t, tt.wantType, stmt.Declare.Type)
			assert.Equal(t, tt.wantReplace, stmt.Declare.Replace)
			if tt.wantDefault == "" {
				assert.Nil(t, stmt.Declare.Default)
			} else {
				require.NotNil(t, stmt.Declare.Default)
				assert.Equal(t, tt.wantDefault, stmt.Declare.Default.Text)
			}
		})
	}
}

func TestParse_Handlers(t *testing.T) {
	tree := parse(t, `BEGIN
  DECLARE EXIT HANDLER FOR SQLEXCEPTION, SQLSTATE '22012'
  BEGIN
    SELECT 'failed';
  END;
  DECLARE CONTINUE HANDLER FOR NOT FOUND SET x = 1;
  DECLARE CONTINUE HANDLER FOR DIVIDE_BY_ZERO, INVALID_LABEL_USAGE.DOES_NOT_EXIST SELECT 2;
  SELECT 3;
END;`)
	blk := root(t, tree)

	require.Len(t, blk.Body, 1, "handlers are not statements")
	require.Len(t, blk.Handlers, 3)

	exit := blk.Handlers[0]
	assert.Equal(t, script.HandlerExit, exit.Action)
	require.Len(t, exit.Conditions, 2)
	assert.Equal(t, script.CondException, exit.Conditions[0].Kind)
	assert.Equal(t, script.CondSQLState, exit.Conditions[1].Kind)
	assert.Equal(t, "22012", exit.Conditions[1].Value)
	exitBody := bodyOf(t, tree, exit.Body)
	assert.True(t, exitBody.Implicit)
	require.Len(t, exitBody.Body, 1)
	_, isBlock := tree.Node(exitBody.Body[0]).(*script.Block)
	assert.True(t, isBlock)

	cont := blk.Handlers[1]
	assert.Equal(t, script.HandlerContinue, cont.Action)
	require.Len(t, cont.Conditions, 1)
	assert.Equal(t, script.CondNotFound, cont.Conditions[0].Kind)
	assert.Equal(t, script.StmtSet, leafOf(t, tree, bodyOf(t, tree, cont.Body).Body[0]).Kind)

	named := blk.Handlers[2]
	require.Len(t, named.Conditions, 2)
	assert.Equal(t, script.CondNamed, named.Conditions[0].Kind)
	assert.Equal(t, "DIVIDE_BY_ZERO", named.Conditions[0].Value)
	assert.Equal(t, "INVALID_LABEL_USAGE.DOES_NOT_EXIST", named.Conditions[1].Value)
}

func TestParse_Conditions(t *testing.T) {
	tree := parse(t, `BEGIN
  DECLARE my_err CONDITION FOR SQLSTATE VALUE '45001';
  DECLARE other CONDITION;
  SIGNAL my_err;
END;`)
	blk := root(t, tree)

	require.Len(t, blk.Conditions, 2)
	assert.Equal(t, "my_err", blk.Conditions[0].Name)
	assert.Equal(t, "45001", blk.Conditions[0].SQLState)
	assert.Equal(t, "other", blk.Conditions[1].Name)
	assert.Equal(t, "45000", blk.Conditions[1].SQLState)
	require.Len(t, blk.Body, 1)
	assert.Equal(t, "my_err", leafOf(t, tree, blk.Body[0]).Signal.Condition)
}

func TestParse_Signal(t *testing.T) {
	tree := parse(t, "SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'it''s broken';")
	stmt := leafOf(t, tree, root(t, tree).Body[0])

	assert.Equal(t, script.StmtSignal, stmt.Kind)
	assert.Equal(t, "45000", stmt.Signal.SQLState)
	assert.Equal(t, "it's broken", stmt.Signal.Message)
	assert.Equal(t, "SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'it''s broken'", stmt.Text)
}

func TestParse_Set(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantKind  script.StmtKind
		wantNames []string
		wantValue string
		explicit  bool
	}{
		{"plain", "SET x = x * 2;", script.StmtSet, []string{"x"}, "x * 2", false},
		{"explicit", "SET VAR x = 1;", script.StmtSet, []string{"x"}, "1", true},
		{"tuple", "SET VARIABLE (a, b) = (SELECT 1, 2);", script.StmtSet, []string{"a", "b"}, "(SELECT 1, 2)", true},
		{"session setting", "SET s3_region = 'us-east-1';", script.StmtSet, []string{"s3_region"}, "'us-east-1'", false},
		{"qualified setting", "SET a.b = 1;", script.StmtQuery, nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.src)
			stmt := leafOf(t, tree, root(t, tree).Body[0])
			assert.Equal(t, tt.wantKind, stmt.Kind)
			if tt.wantKind != script.StmtSet {
				assert.Equal(t, "SET a.b = 1", stmt.Text)
				return
			}
			assert.Equal(t, tt.wantNames, stmt.Set.Names)
			assert.Equal(t, tt.wantValue, stmt.Set.Value.Text)
			assert.Equal(t, tt.explicit, stmt.Set.Explicit)
		})
	}
}

// ---------- Errors ----------

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"empty", "  -- nothing\n", "empty script"},
		{"label on statement", "lbl: SELECT 1;", "label lbl must precede"},
		{"end label mismatch", "a: BEGIN SELECT 1; END b;", `end label b does not match begin label a`},
		{"end label without begin", "BEGIN SELECT 1; END b;", "end label b without a begin label"},
		{"missing condition", "IF THEN SELECT 1; END IF;", "expected an expression before THEN"},
		{"unterminated if", "IF x THEN SELECT 1;", "unexpected end of input, expected END"},
		{"missing semicolon before END", "BEGIN SELECT 1 END;", "expected END"},
		{"invalid sqlstate", "BEGIN DECLARE EXIT HANDLER FOR SQLSTATE '123' SELECT 1; END;", `invalid SQLSTATE "123"`},
		{"handler body declares", "BEGIN DECLARE EXIT HANDLER FOR SQLEXCEPTION DECLARE c CONDITION; END;", "cannot declare handlers"},
		{"empty statement", "SELECT 1;;", "empty statement"},
		{"leave without label", "LOOP LEAVE; END LOOP;", "expected label"},
		{"case without when", "CASE x ELSE SELECT 1; END CASE;", "expected WHEN"},
		{"unterminated string", "SELECT 'oops", "unterminated string literal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := parser.Parse("BEGIN\n  SELECT 1;\n  lbl: SELECT 2;\nEND;")
	require.Error(t, err)

	var perr *parser.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Pos.Line)
	assert.Equal(t, 3, perr.Pos.Column)
}

// ---------- Building ----------

func TestParse_BuildsPlan(t *testing.T) {
	tree := parse(t, `outer: BEGIN
  DECLARE i INT DEFAULT 0;
  inner: WHILE i < 3 DO
    SET i = i + 1;
    IF i = 2 THEN ITERATE inner; END IF;
    LEAVE outer;
  END WHILE inner;
END outer;`)

	plan, err := script.Build(tree, nil, script.Options{})
	require.NoError(t, err)
	assert.Equal(t, "outer", plan.Label(tree.Root))
}

func TestParse_BuildResolvesSignalWithoutMutatingTree(t *testing.T) {
	tree := parse(t, `BEGIN
  DECLARE bad_input CONDITION FOR SQLSTATE '22000';
  SIGNAL bad_input;
END;`)

	var leaf script.NodeID
	for id := script.NodeID(1); int(id) <= tree.Len(); id++ {
		if l, ok := tree.Node(id).(*script.Leaf); ok && l.Stmt.Signal != nil {
			leaf = id
		}
	}
	require.NotEqual(t, script.NoNode, leaf)

	plan, err := script.Build(tree, nil, script.Options{})
	require.NoError(t, err)

	assert.Equal(t, "22000", plan.Statement(leaf).Signal.SQLState)
	assert.Empty(t, tree.Node(leaf).(*script.Leaf).Stmt.Signal.SQLState)

	// A second build over the same tree resolves the same way.
	again, err := script.Build(tree, nil, script.Options{})
	require.NoError(t, err)
	assert.Equal(t, "22000", again.Statement(leaf).Signal.SQLState)
}

func TestParse_BuildErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantCond  string
		wantState string
	}{
		{"unknown label", "BEGIN LEAVE missing; END;", script.CondLabelDoesNotExist, "42K0L"},
		{"iterate compound", "l: BEGIN ITERATE l; END l;", script.CondIterateInCompound, "42K0L"},
		{
			"duplicate handler",
			"BEGIN DECLARE EXIT HANDLER FOR SQLEXCEPTION SELECT 1; DECLARE CONTINUE HANDLER FOR SQLEXCEPTION SELECT 2; END;",
			script.CondDuplicateHandler,
			"42734",
		},
		{
			"duplicate condition",
			"BEGIN DECLARE c CONDITION; DECLARE C CONDITION; END;",
			script.CondDuplicateCondition,
			"42734",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.src)
			_, err := script.Build(tree, nil, script.Options{})
			require.Error(t, err)

			var serr *script.Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.wantCond, serr.Condition)
			assert.Equal(t, tt.wantState, serr.SQLState)
		})
	}
}
