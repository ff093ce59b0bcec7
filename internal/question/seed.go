package question

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ImportSeedFile adds the questions listed in a YAML file to the custom list, skipping
// any whose text is already present. A missing file is not an error.
//
//	- question: Capital of France?
//	  options: [Paris, Rome, Madrid, Berlin]
//	  correct: Paris
func ImportSeedFile(ctx context.Context, path string, repo *CustomRepository) (int, error) {
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var inputs []CustomInput
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}

	existing := make(map[string]struct{})
	for _, q := range repo.List(ctx) {
		existing[strings.TrimSpace(q.Question)] = struct{}{}
	}

	added := 0
	for i, in := range inputs {
		if _, dup := existing[strings.TrimSpace(in.Question)]; dup {
			continue
		}
		if _, err := repo.Add(ctx, in); err != nil {
			return added, fmt.Errorf("seed entry %d: %w", i+1, err)
		}
		existing[strings.TrimSpace(in.Question)] = struct{}{}
		added++
	}
	return added, nil
}
