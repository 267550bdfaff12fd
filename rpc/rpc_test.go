package rpc

import (
	"context"
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/wfunc/wordchain/chain"
	"github.com/wfunc/wordchain/karma"
	"github.com/wfunc/wordchain/lexicon"
	"github.com/wfunc/wordchain/persistence"
	"github.com/wfunc/wordchain/services"
)

type staticSource map[string]bool

func (s staticSource) Exists(_ context.Context, word, lang string) (bool, error) {
	return s[lexicon.CacheKey(word, lang)], nil
}

func newTestClient(t *testing.T) (*rpc.Client, *services.ChainValidator) {
	t.Helper()
	repo := persistence.NewMemory()
	chains := chain.NewManager()
	engine := karma.NewEngine(karma.NewFrequencyScorer(), 5, 5)
	lookup := lexicon.NewService(staticSource{"apple:en": true}, lexicon.NewMemoryCache(), lexicon.Options{Timeout: time.Second})
	validator := services.NewChainValidator(repo, chains, lookup, engine, services.ValidatorOptions{})
	t.Cleanup(lookup.Wait)

	server := rpc.NewServer()
	err := server.Register(NewAdminService(
		services.NewAdminService(repo, validator, chains, engine),
		validator,
		services.NewLeaderboardAggregator(repo),
	))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	serverConn, clientConn := net.Pipe()
	go server.ServeConn(serverConn)
	client := rpc.NewClient(clientConn)
	t.Cleanup(func() { client.Close() })
	return client, validator
}

func TestAdminService_Languages(t *testing.T) {
	client, _ := newTestClient(t)

	var reply LanguagesReply
	if err := client.Call("AdminService.AddLanguage", &LanguageArgs{ServerID: "s1", Code: "fr"}, &reply); err != nil {
		t.Fatalf("AddLanguage failed: %v", err)
	}
	if len(reply.Languages) != 2 || reply.Languages[1] != "fr" {
		t.Errorf("Expected [en fr], got %v", reply.Languages)
	}

	if err := client.Call("AdminService.AddLanguage", &LanguageArgs{ServerID: "s1", Code: "xx"}, &reply); err == nil {
		t.Error("Unknown languages should fail")
	}
}

func TestAdminService_ListsAndCheck(t *testing.T) {
	client, _ := newTestClient(t)

	var list ListReply
	if err := client.Call("AdminService.AddListWord", &ListArgs{ServerID: "s1", Kind: "blacklist", Word: "Apple"}, &list); err != nil {
		t.Fatalf("AddListWord failed: %v", err)
	}
	if len(list.Words) != 1 || list.Words[0] != "apple" {
		t.Errorf("Expected [apple], got %v", list.Words)
	}
	if err := client.Call("AdminService.ListWords", &ListArgs{ServerID: "s1", Kind: "greylist"}, &list); err == nil {
		t.Error("Unknown list kinds should fail")
	}

	var result services.CheckResult
	if err := client.Call("AdminService.CheckWord", &CheckArgs{ServerID: "s1", Word: "apple"}, &result); err != nil {
		t.Fatalf("CheckWord failed: %v", err)
	}
	if result.Valid || result.Reason != "blacklisted" {
		t.Errorf("Expected a blacklisted result, got %+v", result)
	}
}

func TestAdminService_StatsAndLeaderboard(t *testing.T) {
	client, validator := newTestClient(t)
	if _, err := validator.Submit(context.Background(), "s1", "u1", "apple"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	var board LeaderboardReply
	if err := client.Call("AdminService.Leaderboard", &LeaderboardArgs{ServerID: "s1"}, &board); err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].UserID != "u1" {
		t.Errorf("Unexpected leaderboard: %+v", board.Entries)
	}

	var empty Empty
	if err := client.Call("AdminService.DeleteUserData", &MemberArgs{UserID: "u1"}, &empty); err != nil {
		t.Fatalf("DeleteUserData failed: %v", err)
	}
	var reply LeaderboardReply
	client.Call("AdminService.Leaderboard", &LeaderboardArgs{ServerID: "s1"}, &reply)
	if len(reply.Entries) != 0 {
		t.Errorf("Deleted users should leave the leaderboard, got %+v", reply.Entries)
	}
}
