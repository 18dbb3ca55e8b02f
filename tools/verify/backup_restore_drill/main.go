package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/basket/haxxor-bunny/internal/hi3"
	"github.com/basket/haxxor-bunny/internal/persistence"
)

func main() {
	ctx := context.Background()
	baseDir, err := os.MkdirTemp("", "haxxor-backup-drill-*")
	if err != nil {
		fmt.Printf("mktemp_error=%v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(baseDir)

	dbPath := filepath.Join(baseDir, "haxxor.db")
	backupPath := filepath.Join(baseDir, "backup.db")

	store, err := persistence.Open(dbPath)
	if err != nil {
		fmt.Printf("open_store_error=%v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	const characters, perCharacter = 10, 4
	for i := 0; i < characters; i++ {
		c, err := store.CreateCharacter(ctx, fmt.Sprintf("Character %02d", i), "🔥")
		if err != nil {
			fmt.Printf("create_character_error=%v\n", err)
			os.Exit(1)
		}
		for j := 0; j < perCharacter; j++ {
			v, err := store.CreateValkyrie(ctx, hi3.Valkyrie{
				CharacterID: c.ID,
				Name:        fmt.Sprintf("Battlesuit %02d-%d", i, j),
				Nature:      hi3.NatureMecha,
				BaseRank:    hi3.RankA,
				Acronyms:    []string{fmt.Sprintf("bs%02d%d", i, j)},
				Emoji:       "⚡",
			})
			if err != nil {
				fmt.Printf("create_valkyrie_error=%v\n", err)
				os.Exit(1)
			}
			if _, err := store.UpsertUserValkyrie(ctx, hi3.UserValkyrie{
				UserID: "111111111111111111", ValkyrieID: v.ID, Rank: hi3.RankS,
			}); err != nil {
				fmt.Printf("upsert_user_valkyrie_error=%v\n", err)
				os.Exit(1)
			}
		}
	}

	backupStart := time.Now().UTC()
	if err := store.Backup(ctx, backupPath); err != nil {
		fmt.Printf("backup_error=%v\n", err)
		os.Exit(1)
	}
	backupEnd := time.Now().UTC()

	restoreStart := time.Now().UTC()
	restoreStore, err := persistence.Open(backupPath)
	if err != nil {
		fmt.Printf("open_restore_error=%v\n", err)
		os.Exit(1)
	}
	defer restoreStore.Close()
	restoreEnd := time.Now().UTC()

	valks, err := restoreStore.ListValkyries(ctx)
	if err != nil {
		fmt.Printf("list_valkyries_error=%v\n", err)
		os.Exit(1)
	}
	owned, err := restoreStore.ListUserValkyries(ctx, "111111111111111111")
	if err != nil {
		fmt.Printf("list_user_valkyries_error=%v\n", err)
		os.Exit(1)
	}
	_, found, err := restoreStore.FindValkyrieByNameOrAcronym(ctx, "BS000")
	if err != nil {
		fmt.Printf("find_acronym_error=%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("backup_duration=%s\n", backupEnd.Sub(backupStart))
	fmt.Printf("restore_duration=%s\n", restoreEnd.Sub(restoreStart))
	fmt.Printf("restored_valkyries=%d\n", len(valks))
	fmt.Printf("restored_user_valkyries=%d\n", len(owned))
	fmt.Printf("acronym_lookup=%v\n", found)

	want := characters * perCharacter
	if len(valks) != want || len(owned) != want || !found {
		fmt.Println("VERDICT FAIL")
		os.Exit(1)
	}
	fmt.Println("VERDICT PASS")
}
