// Package steps holds the godog step definitions for the replication
// features. They drive both services over HTTP only.
package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

const (
	pollInterval = 200 * time.Millisecond
	pollTimeout  = 15 * time.Second
)

// TestContext carries one scenario's state.
type TestContext struct {
	PersonURL  string
	AddressURL string
	Client     *http.Client

	personID   string
	lastStatus int
	lastBody   map[string]any
}

// RegisterSteps binds the step expressions to tc.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^the person service is running$`, func() error { return tc.healthy(tc.PersonURL) })
	ctx.Step(`^the address service is running$`, func() error { return tc.healthy(tc.AddressURL) })
	ctx.Step(`^I create a person "([^"]*)" "([^"]*)" with title "([^"]*)"$`, tc.createPerson)
	ctx.Step(`^I delete that person$`, tc.deletePerson)
	ctx.Step(`^I rename that person to "([^"]*)" through the address service$`, tc.renameViaAddress)
	ctx.Step(`^I add a "([^"]*)" address at "([^"]*)", "([^"]*)", "([^"]*)" "([^"]*)" for that person$`, tc.addAddress)
	ctx.Step(`^I add a "([^"]*)" address at "([^"]*)", "([^"]*)", "([^"]*)" "([^"]*)" for an unknown person$`, tc.addAddressForUnknown)
	ctx.Step(`^the response status should be (\d+)$`, tc.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, tc.fieldShouldBe)
	ctx.Step(`^the address service eventually knows that person$`, func() error {
		return tc.eventually(tc.AddressURL+"/replica/persons/"+tc.personID, http.StatusOK, "")
	})
	ctx.Step(`^the address service eventually forgets that person$`, func() error {
		return tc.eventually(tc.AddressURL+"/replica/persons/"+tc.personID, http.StatusNotFound, "")
	})
	ctx.Step(`^the person service eventually reports first name "([^"]*)"$`, func(name string) error {
		return tc.eventually(tc.PersonURL+"/persons/"+tc.personID, http.StatusOK, name)
	})

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.personID, tc.lastStatus, tc.lastBody = "", 0, nil
		return ctx, nil
	})
}

func (tc *TestContext) healthy(base string) error {
	resp, err := tc.Client.Get(base + "/healthz")
	if err != nil {
		return fmt.Errorf("service at %s unreachable: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service at %s unhealthy: %d", base, resp.StatusCode)
	}
	return nil
}

func (tc *TestContext) createPerson(first, last, title string) error {
	if err := tc.do(http.MethodPost, tc.PersonURL+"/persons", map[string]string{
		"firstName": first, "lastName": last, "title": title,
	}); err != nil {
		return err
	}
	person, ok := tc.lastBody["person"].(map[string]any)
	if !ok {
		return fmt.Errorf("create person returned no person: %v", tc.lastBody)
	}
	tc.personID, _ = person["id"].(string)
	return nil
}

func (tc *TestContext) deletePerson() error {
	return tc.do(http.MethodDelete, tc.PersonURL+"/persons/"+tc.personID, nil)
}

func (tc *TestContext) renameViaAddress(first string) error {
	if err := tc.do(http.MethodGet, tc.AddressURL+"/replica/persons/"+tc.personID, nil); err != nil {
		return err
	}
	body := map[string]any{"firstName": first}
	for _, k := range []string{"middleInitial", "lastName", "title"} {
		if v, ok := tc.lastBody[k]; ok {
			body[k] = v
		}
	}
	return tc.do(http.MethodPut, tc.AddressURL+"/persons/"+tc.personID, body)
}

func (tc *TestContext) addAddress(kind, street, city, state, zip string) error {
	return tc.do(http.MethodPost, tc.AddressURL+"/addresses", map[string]string{
		"personId": tc.personID,
		"type":     kind,
		"street":   street,
		"city":     city,
		"state":    state,
		"zipCode":  zip,
	})
}

func (tc *TestContext) addAddressForUnknown(kind, street, city, state, zip string) error {
	tc.personID = "7d4f8e1c-0c4b-4d3c-9a51-3b0f5a0d2c11"
	return tc.addAddress(kind, street, city, state, zip)
}

func (tc *TestContext) statusShouldBe(want int) error {
	if tc.lastStatus != want {
		return fmt.Errorf("expected status %d, got %d (%v)", want, tc.lastStatus, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) fieldShouldBe(field, want string) error {
	got := fmt.Sprint(tc.lastBody[field])
	if got != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}

// eventually polls url until it answers status and, when firstName is set,
// reports that first name.
func (tc *TestContext) eventually(url string, status int, firstName string) error {
	deadline := time.Now().Add(pollTimeout)
	for {
		err := tc.do(http.MethodGet, url, nil)
		if err == nil && tc.lastStatus == status &&
			(firstName == "" || tc.lastBody["firstName"] == firstName) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: still %d %v after %s", url, tc.lastStatus, tc.lastBody, pollTimeout)
		}
		time.Sleep(pollInterval)
	}
}

func (tc *TestContext) do(method, url string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := tc.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &tc.lastBody); err != nil {
			tc.lastBody = map[string]any{"raw": strconv.Quote(string(raw))}
		}
	}
	return nil
}
