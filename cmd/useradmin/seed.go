package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Skryldev/useradmin/db"
	"github.com/Skryldev/useradmin/models"
	"github.com/Skryldev/useradmin/repo"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.json|->",
	Short: "Insert users from a JSON array in one transaction",
	Long:  `Reads [{"name": "...", "email": "..."}, ...] and inserts every entry, or none if any fails.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := readSeedFile(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.db.Close()

		created, err := seedUsers(cmd.Context(), st, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted %d users\n", len(created))
		return nil
	},
}

func readSeedFile(stdin io.Reader, path string) ([]models.CreateUserParams, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var params []models.CreateUserParams
	if err := json.NewDecoder(r).Decode(&params); err != nil {
		return nil, fmt.Errorf("seed: decode %s: %w", path, err)
	}
	for i, p := range params {
		if p.Name == "" || !models.IsValidEmail(p.Email) {
			return nil, fmt.Errorf("seed: entry %d: name and valid email are required", i)
		}
	}
	return params, nil
}

func seedUsers(ctx context.Context, st *store, params []models.CreateUserParams) ([]*models.User, error) {
	var created []*models.User
	err := st.db.ExecTx(ctx, func(tx *db.Tx) error {
		var err error
		created, err = repo.NewUserRepo(tx, st.dialect).BatchInsert(ctx, params)
		return err
	})
	if db.IsDuplicateKey(err) {
		return nil, fmt.Errorf("seed: a name is already taken, nothing inserted: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return created, nil
}
