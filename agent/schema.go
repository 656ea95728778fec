package agent

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nathoo/worldcore/engine/rules"
	"github.com/nathoo/worldcore/types"
)

//go:embed proposal.schema.json
var proposalSchemaJSON []byte

const proposalSchemaURL = "https://github.com/nathoo/worldcore/proposal.schema.json"

func compileProposalSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(proposalSchemaURL, bytes.NewReader(proposalSchemaJSON)); err != nil {
		return nil, fmt.Errorf("proposal schema: %w", err)
	}
	return c.Compile(proposalSchemaURL)
}

// proposalDetail is what a player sees for any proposal that cannot be
// decoded. The decoder's own error goes to the log.
const proposalDetail = "that isn't an action the world understands"

// decodeProposal checks a structured proposal against the schema and
// decodes it into an action owned by playerID. Whatever player id the
// proposal carries is overwritten. Errors describe the raw document and
// are not fit for players.
func decodeProposal(schema *jsonschema.Schema, raw []byte, playerID string) (types.Action, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.Action{}, fmt.Errorf("proposal is not JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return types.Action{}, fmt.Errorf("proposal does not match the action schema: %w", err)
	}

	var a types.Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return types.Action{}, fmt.Errorf("decode proposal: %w", err)
	}
	a.PlayerID = playerID
	if rej := rules.CheckShape(a); rej != nil {
		return types.Action{}, fmt.Errorf("proposal shape: %w", rej)
	}
	return a, nil
}
