/*
 * Copyright 2025 SMSDesk Pty Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package poller

import "errors"

var (
	errNoUpdateCallback = errors.New("update callback is required")
	errNoSentFetcher    = errors.New("sent fetcher is required when sent polling is enabled")
	errNoInboxFetcher   = errors.New("inbox fetcher is required when inbox polling is enabled")
	errNoSessionSource  = errors.New("session resolver is required")
)
