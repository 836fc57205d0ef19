package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// checkBootstrap asks the running API whether the first-admin setup is open.
func (cli *commandLine) checkBootstrap(addr string) error {
	res, err := cli.client.Get(addr + "/bo/setup/bootstrap")
	if err != nil {
		return errors.Wrap(err, "calling API")
	}
	defer res.Body.Close()

	var body map[string]interface{}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return errors.Wrap(err, "decoding response")
	}

	if res.StatusCode != http.StatusOK {
		fmt.Printf("bootstrap closed: %v (%v)\n", body["error"], body["reason"])
		return nil
	}
	fmt.Printf("bootstrap open; attempts remaining: %v\n", body["attempts_remaining"])
	return nil
}

// bootstrap creates the first admin account through the running API.
func (cli *commandLine) bootstrap(addr, name, email, pwd, key string) error {
	payload, err := json.Marshal(map[string]string{
		"name":         name,
		"email":        email,
		"password":     pwd,
		"bootstrapKey": key,
	})
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}

	res, err := cli.client.Post(addr+"/bo/setup/create-admin", "application/json", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "calling API")
	}
	defer res.Body.Close()

	var body map[string]interface{}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return errors.Wrap(err, "decoding response")
	}

	if res.StatusCode != http.StatusCreated {
		return errors.Errorf("bootstrap failed (%d): %v", res.StatusCode, body)
	}
	fmt.Printf("first admin created: %v\n", body["admin"])
	return nil
}
